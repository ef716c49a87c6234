package diff

import (
	"fmt"
	"time"

	"github.com/roach88/gymlog/internal/gym"
	"github.com/roach88/gymlog/internal/membership"
)

// Policy decides whether a gym is diffed on every pass.
type Policy string

const (
	// PolicyAlways diffs every observed gym regardless of last_modified.
	PolicyAlways Policy = "always"

	// PolicyModified diffs a gym only when its last_modified advanced.
	PolicyModified Policy = "modified"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAlways, PolicyModified:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown diff policy %q: must be %q or %q", s, PolicyAlways, PolicyModified)
	}
}

// Previous is the persisted state a new observation is compared against.
type Previous struct {
	Gym     gym.Gym
	Members []string
}

// Result is the outcome of one diff.
type Result struct {
	// Events are in emission order with Seq and Timestamp assigned.
	Events []gym.Event

	// New is set when there was no projection to compare against.
	New bool

	// Unchanged is set when PolicyModified skipped classification.
	Unchanged bool

	// Delta is the occupant delta when rule 6 ran.
	Delta *membership.Delta
}

// Engine classifies gym changes.
type Engine struct {
	clock     Clock
	heartbeat bool
	policy    Policy
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to stamp events.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithHeartbeat enables or disables the NoDetectedChange fallback event.
func WithHeartbeat(enabled bool) Option {
	return func(e *Engine) {
		e.heartbeat = enabled
	}
}

// WithPolicy sets the diff trigger policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		if p != "" {
			e.policy = p
		}
	}
}

// New creates an Engine. Defaults: system clock, heartbeat on, PolicyAlways.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:     SystemClock{},
		heartbeat: true,
		policy:    PolicyAlways,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the configured trigger policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Diff compares prev (nil for a new gym) with obs, stamping events with the
// engine clock.
func (e *Engine) Diff(prev *Previous, obs gym.Observation) Result {
	return e.classify(prev, obs, e.clock.Now)
}

// DiffAt is Diff with an explicit emission time.
func (e *Engine) DiffAt(prev *Previous, obs gym.Observation, now time.Time) Result {
	return e.classify(prev, obs, func() time.Time { return now })
}

func (e *Engine) classify(prev *Previous, obs gym.Observation, now func() time.Time) Result {
	if prev == nil {
		return Result{New: true, Events: []gym.Event{}}
	}

	if e.policy == PolicyModified && !obs.Gym.LastModified.After(prev.Gym.LastModified) {
		return Result{Unchanged: true, Events: []gym.Event{}}
	}

	old, cur := prev.Gym, obs.Gym
	b := &builder{gymID: cur.ID, now: now(), events: []gym.Event{}}

	if cur.InBattle {
		b.emit(gym.Event{Kind: gym.EventBattleStarted})
	}
	if old.InBattle && !cur.InBattle {
		b.emit(gym.Event{Kind: gym.EventBattleEnded})
	}

	delta := cur.Points - old.Points
	teamChanged := cur.Team != old.Team
	switch {
	case !teamChanged && delta > 0:
		b.emit(gym.Event{Kind: gym.EventPointsGained, PointsDelta: gym.Int(delta), Points: gym.Int(cur.Points)})
	case !teamChanged && delta < 0:
		b.emit(gym.Event{Kind: gym.EventPointsLost, PointsDelta: gym.Int(delta), Points: gym.Int(cur.Points)})
	case teamChanged:
		b.emit(gym.Event{
			Kind:    gym.EventTeamChanged,
			OldTeam: gym.Int(old.Team),
			NewTeam: gym.Int(cur.Team),
			Points:  gym.Int(cur.Points),
		})
	}

	var md *membership.Delta
	if teamChanged || len(obs.Occupants) != len(prev.Members) {
		d := membership.Reconcile(prev.Members, obs.TrainerNames())
		md = &d
		for _, name := range d.Joined {
			b.emit(gym.Event{Kind: gym.EventMemberJoined, Trainer: name})
		}
		for _, name := range d.Left {
			b.emit(gym.Event{Kind: gym.EventMemberLeft, Trainer: name})
		}
	}

	if len(b.events) == 0 && e.heartbeat {
		b.emit(gym.Event{Kind: gym.EventNoDetectedChange})
	}

	return Result{Events: b.events, Delta: md}
}

type builder struct {
	gymID  string
	now    time.Time
	events []gym.Event
}

func (b *builder) emit(ev gym.Event) {
	ev.GymID = b.gymID
	ev.Timestamp = b.now
	ev.Seq = len(b.events)
	b.events = append(b.events, ev)
}
