package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gymlog/internal/gym"
	"github.com/roach88/gymlog/internal/store"
	"github.com/roach88/gymlog/internal/testutil"
)

// member is one occupant of a test record.
type member struct {
	trainer   string
	level     int
	creature  any
	speciesID int
	cp        int
}

// rec builds a provider record.
type rec struct {
	id       string
	name     string
	team     int
	points   int
	inBattle bool
	modified time.Time
	members  []member
}

func (r rec) raw(t *testing.T) json.RawMessage {
	t.Helper()
	memberships := make([]map[string]any, 0, len(r.members))
	for _, m := range r.members {
		memberships = append(memberships, map[string]any{
			"pokemon_data": map[string]any{
				"id":         m.creature,
				"pokemon_id": m.speciesID,
				"cp":         m.cp,
				"owner_name": m.trainer,
			},
			"trainer_public_profile": map[string]any{"name": m.trainer, "level": m.level},
		})
	}
	modified := r.modified
	if modified.IsZero() {
		modified = testutil.Epoch.Add(-time.Hour)
	}
	name := r.name
	if name == "" {
		name = "Gym " + r.id
	}
	b, err := json.Marshal(map[string]any{
		"name": name,
		"gym_state": map[string]any{
			"fort_data": map[string]any{
				"id":                         r.id,
				"owned_by_team":              r.team,
				"gym_points":                 r.points,
				"is_in_battle":               r.inBattle,
				"enabled":                    true,
				"latitude":                   42.88,
				"longitude":                  -8.54,
				"last_modified_timestamp_ms": modified.UnixMilli(),
			},
			"memberships": memberships,
		},
	})
	require.NoError(t, err)
	return b
}

func batch(t *testing.T, recs ...rec) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.raw(t))
	}
	return out
}

func garrison(trainer string, level int, creature string) member {
	return member{trainer: trainer, level: level, creature: creature, speciesID: 131, cp: 1500}
}

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestReconciler(t *testing.T, s Store, opts ...Option) *Reconciler {
	t.Helper()
	opts = append([]Option{
		WithClock(testutil.NewDeterministicClock()),
		WithPassIDs(testutil.NewSequentialPassIDs("")),
	}, opts...)
	r, err := New(s, opts...)
	require.NoError(t, err)
	return r
}

func readEvents(t *testing.T, s *store.Store, gymID string) []gym.Event {
	t.Helper()
	events, err := s.ReadEvents(context.Background(), store.EventFilter{GymID: gymID})
	require.NoError(t, err)
	return events
}

func eventKinds(events []gym.Event) []gym.EventKind {
	out := make([]gym.EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

var errInjected = errors.New("disk I/O error")

// faultyStore wraps a real store and fails selected operations.
type faultyStore struct {
	*store.Store
	failGetGym   map[string]bool
	failApply    map[string]bool
	failTrainers bool
}

func (f *faultyStore) GetGym(ctx context.Context, id string) (gym.Gym, error) {
	if f.failGetGym[id] {
		return gym.Gym{}, errInjected
	}
	return f.Store.GetGym(ctx, id)
}

func (f *faultyStore) ApplyGymPass(ctx context.Context, p store.GymPass) ([]gym.Event, error) {
	if f.failApply[p.Gym.ID] {
		return nil, errInjected
	}
	return f.Store.ApplyGymPass(ctx, p)
}

func (f *faultyStore) UpsertTrainers(ctx context.Context, trainers []gym.Trainer) (int, error) {
	if f.failTrainers {
		return 0, errInjected
	}
	return f.Store.UpsertTrainers(ctx, trainers)
}

// recordingMetrics captures metric calls.
type recordingMetrics struct {
	outcomes map[string]int
	events   map[gym.EventKind]int
	dropped  int
	passes   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[string]int{}, events: map[gym.EventKind]int{}}
}

func (r *recordingMetrics) GymReconciled(outcome string)            { r.outcomes[outcome]++ }
func (r *recordingMetrics) EventsEmitted(kind gym.EventKind, n int) { r.events[kind] += n }
func (r *recordingMetrics) MembershipsDropped(n int)                { r.dropped += n }
func (r *recordingMetrics) PassCompleted(time.Duration)             { r.passes++ }
