package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/gymlog/internal/diff"
	"github.com/roach88/gymlog/internal/gym"
	"github.com/roach88/gymlog/internal/metrics"
	"github.com/roach88/gymlog/internal/snapshot"
	"github.com/roach88/gymlog/internal/store"
)

// Store is the persistence the Reconciler needs. *store.Store satisfies it.
type Store interface {
	GetGym(ctx context.Context, id string) (gym.Gym, error)
	GymMembers(ctx context.Context, gymID string) ([]gym.Membership, error)
	ApplyGymPass(ctx context.Context, pass store.GymPass) ([]gym.Event, error)
	UpsertTrainers(ctx context.Context, trainers []gym.Trainer) (int, error)
	UpsertCreatures(ctx context.Context, creatures []gym.Creature) (int, error)
}

// Metrics receives per-pass observations. *metrics.Recorder satisfies it.
type Metrics interface {
	GymReconciled(outcome string)
	EventsEmitted(kind gym.EventKind, n int)
	MembershipsDropped(n int)
	PassCompleted(d time.Duration)
}

// PassIDGenerator produces one id per pass.
type PassIDGenerator interface {
	Generate() string
}

// UUIDv7PassIDs generates time-sortable UUIDv7 pass ids.
type UUIDv7PassIDs struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7PassIDs) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Reconciler runs reconciliation passes. It is not safe for concurrent use:
// the membership replace relies on a single writer per gym.
type Reconciler struct {
	store   Store
	parser  *snapshot.Parser
	clock   diff.Clock
	passIDs PassIDGenerator
	logger  *slog.Logger
	metrics Metrics

	heartbeat bool
	policy    diff.Policy
	engine    *diff.Engine
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the clock used for event timestamps and last-checked times.
func WithClock(c diff.Clock) Option {
	return func(r *Reconciler) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithPassIDs sets the pass id generator.
func WithPassIDs(g PassIDGenerator) Option {
	return func(r *Reconciler) {
		if g != nil {
			r.passIDs = g
		}
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithHeartbeat toggles NoDetectedChange events.
func WithHeartbeat(enabled bool) Option {
	return func(r *Reconciler) {
		r.heartbeat = enabled
	}
}

// WithPolicy sets the diff trigger policy.
func WithPolicy(p diff.Policy) Option {
	return func(r *Reconciler) {
		r.policy = p
	}
}

// New creates a Reconciler over s.
func New(s Store, opts ...Option) (*Reconciler, error) {
	if s == nil {
		return nil, errors.New("reconcile: nil store")
	}
	parser, err := snapshot.NewParser()
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	r := &Reconciler{
		store:     s,
		parser:    parser,
		clock:     diff.SystemClock{},
		passIDs:   UUIDv7PassIDs{},
		logger:    slog.New(slog.DiscardHandler),
		metrics:   nopMetrics{},
		heartbeat: true,
		policy:    diff.PolicyAlways,
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := diff.ParsePolicy(string(r.policy)); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	r.engine = diff.New(diff.WithClock(r.clock), diff.WithHeartbeat(r.heartbeat), diff.WithPolicy(r.policy))
	return r, nil
}

// pass carries the state of one batch.
type pass struct {
	id       string
	seq      int
	summary  Summary
	trainers *batchSet[gym.Trainer]
	monsters *batchSet[gym.Creature]
}

// ReconcileBatch runs one pass over raw records.
//
// The returned error is non-nil only when ctx is cancelled; the summary then
// covers the gyms processed so far. Per-gym faults are reported in the
// summary.
func (r *Reconciler) ReconcileBatch(ctx context.Context, records []json.RawMessage) (Summary, error) {
	started := time.Now()
	id := r.passIDs.Generate()
	p := &pass{
		id:       id,
		summary:  newSummary(id),
		trainers: newBatchSet[gym.Trainer](),
		monsters: newBatchSet[gym.Creature](),
	}
	log := r.logger.With("pass_id", p.id)
	log.Debug("reconciliation pass started", "records", len(records))

	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			return p.summary, fmt.Errorf("reconcile batch: %w", err)
		}

		obs, err := r.parser.Parse(i, raw)
		if err != nil {
			var malformed *snapshot.MalformedError
			gymID := ""
			if errors.As(err, &malformed) {
				gymID = malformed.GymID
			}
			log.Warn("skipping malformed observation", "gym_id", gymID, "index", i, "error", err)
			r.fail(p, GymFailure{GymID: gymID, Kind: FailureMalformed, Err: err}, metrics.OutcomeMalformed)
			continue
		}

		if err := r.reconcileGym(ctx, p, log, obs); err != nil {
			log.Error("gym reconciliation failed", "gym_id", obs.Gym.ID, "error", err)
			r.fail(p, GymFailure{GymID: obs.Gym.ID, Kind: FailureStorage, Err: err}, metrics.OutcomeStorage)
		}
	}

	r.flushEntities(ctx, p, log)

	r.metrics.PassCompleted(time.Since(started))
	log.Info("reconciliation pass finished", "summary", p.summary)
	return p.summary, nil
}

func (r *Reconciler) fail(p *pass, f GymFailure, outcome string) {
	p.summary.GymsSkipped++
	p.summary.Failures = append(p.summary.Failures, f)
	r.metrics.GymReconciled(outcome)
}

// reconcileGym runs diff, persist, membership replace for one observation.
func (r *Reconciler) reconcileGym(ctx context.Context, p *pass, log *slog.Logger, obs gym.Observation) error {
	gymID := obs.Gym.ID

	occupants, dropped := sanitizeOccupants(obs.Occupants)
	if len(dropped) > 0 {
		for _, d := range dropped {
			log.Warn("dropping membership", "gym_id", gymID, "trainer", d.occupant.TrainerName,
				"creature_id", d.occupant.CreatureID, "reason", d.reason)
		}
		p.summary.MembershipsDropped += len(dropped)
		r.metrics.MembershipsDropped(len(dropped))
	}
	obs.Occupants = occupants

	prev, err := r.loadPrevious(ctx, gymID)
	if err != nil {
		return err
	}

	now := r.clock.Now()
	obs.Gym.LastChecked = now
	res := r.engine.DiffAt(prev, obs, now)

	events := make([]gym.Event, len(res.Events))
	for i, ev := range res.Events {
		ev.PassID = p.id
		ev.Seq = p.seq + i
		events[i] = ev
	}

	members := make([]gym.Membership, 0, len(occupants))
	for _, occ := range occupants {
		members = append(members, gym.Membership{
			GymID:      gymID,
			Trainer:    occ.TrainerName,
			CreatureID: occ.CreatureID,
			AddedAt:    now,
		})
	}

	gp := store.GymPass{Events: events, Gym: obs.Gym, Members: members}
	if res.Unchanged {
		// A stale observation only marks the gym as checked.
		gp = store.GymPass{Gym: obs.Gym, CheckedOnly: true}
	}
	if _, err := r.store.ApplyGymPass(ctx, gp); err != nil {
		return err
	}

	p.seq += len(events)
	outcome := metrics.OutcomeUpdated
	switch {
	case res.New:
		p.summary.GymsInserted++
		outcome = metrics.OutcomeInserted
	case res.Unchanged:
		p.summary.GymsUnchanged++
		outcome = metrics.OutcomeUnchanged
	default:
		p.summary.GymsUpdated++
	}
	r.metrics.GymReconciled(outcome)

	byKind := map[gym.EventKind]int{}
	for _, ev := range events {
		byKind[ev.Kind]++
	}
	for kind, n := range byKind {
		p.summary.EventsByKind[kind] += n
		r.metrics.EventsEmitted(kind, n)
	}
	p.summary.EventsEmitted += len(events)

	if res.Unchanged {
		log.Debug("gym unchanged", "gym_id", gymID, "last_modified", obs.Gym.LastModified)
		return nil
	}

	for _, occ := range occupants {
		p.trainers.put(occ.TrainerName, gym.Trainer{
			Name:        occ.TrainerName,
			Level:       occ.TrainerLevel,
			Team:        obs.Gym.Team,
			LastChecked: now,
		})
		owner := occ.OwnerName
		if owner == "" {
			owner = occ.TrainerName
		}
		p.monsters.put(occ.CreatureID, gym.Creature{
			ID:          occ.CreatureID,
			Owner:       owner,
			SpeciesID:   occ.SpeciesID,
			CP:          occ.CP,
			LastChecked: now,
		})
	}

	log.Debug("gym reconciled", "gym_id", gymID, "outcome", outcome, "events", len(events), "members", len(members))
	return nil
}

// loadPrevious returns nil when the gym has never been stored.
func (r *Reconciler) loadPrevious(ctx context.Context, gymID string) (*diff.Previous, error) {
	g, err := r.store.GetGym(ctx, gymID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load projection: %w", err)
	}

	members, err := r.store.GymMembers(ctx, gymID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Trainer)
	}
	return &diff.Previous{Gym: g, Members: names}, nil
}

// flushEntities upserts the batch's trainers and creatures once each.
func (r *Reconciler) flushEntities(ctx context.Context, p *pass, log *slog.Logger) {
	if trainers := p.trainers.values(); len(trainers) > 0 {
		n, err := r.store.UpsertTrainers(ctx, trainers)
		if err != nil {
			log.Error("trainer upsert failed", "error", err)
			p.summary.Failures = append(p.summary.Failures, GymFailure{Kind: FailureStorage, Err: err})
		} else {
			p.summary.TrainersUpserted = n
		}
	}

	if creatures := p.monsters.values(); len(creatures) > 0 {
		n, err := r.store.UpsertCreatures(ctx, creatures)
		if err != nil {
			log.Error("creature upsert failed", "error", err)
			p.summary.Failures = append(p.summary.Failures, GymFailure{Kind: FailureStorage, Err: err})
		} else {
			p.summary.CreaturesUpserted = n
		}
	}
}

type nopMetrics struct{}

func (nopMetrics) GymReconciled(string)             {}
func (nopMetrics) EventsEmitted(gym.EventKind, int) {}
func (nopMetrics) MembershipsDropped(int)           {}
func (nopMetrics) PassCompleted(time.Duration)      {}
