package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/gymlog/internal/gym"
)

// FailureKind classifies a per-gym fault.
type FailureKind string

const (
	FailureMalformed FailureKind = "malformed"
	FailureStorage   FailureKind = "storage"
)

// GymFailure is one gym that could not be reconciled. GymID is empty for a
// record without an id and for the end-of-batch trainer/creature upsert.
type GymFailure struct {
	GymID string
	Kind  FailureKind
	Err   error
}

func (f GymFailure) Error() string {
	if f.GymID == "" {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("gym %s: %s: %v", f.GymID, f.Kind, f.Err)
}

func (f GymFailure) Unwrap() error {
	return f.Err
}

// MarshalJSON renders the wrapped error as a string.
func (f GymFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		GymID string      `json:"gym_id"`
		Kind  FailureKind `json:"kind"`
		Error string      `json:"error"`
	}{f.GymID, f.Kind, msg})
}

// Summary reports one reconciliation pass.
type Summary struct {
	PassID             string                `json:"pass_id"`
	GymsInserted       int                   `json:"gyms_inserted"`
	GymsUpdated        int                   `json:"gyms_updated"`
	GymsUnchanged      int                   `json:"gyms_unchanged"`
	GymsSkipped        int                   `json:"gyms_skipped"`
	EventsEmitted      int                   `json:"events_emitted"`
	EventsByKind       map[gym.EventKind]int `json:"events_by_kind"`
	MembershipsDropped int                   `json:"memberships_dropped"`
	TrainersUpserted   int                   `json:"trainers_upserted"`
	CreaturesUpserted  int                   `json:"creatures_upserted"`
	Failures           []GymFailure          `json:"failures"`
}

func newSummary(passID string) Summary {
	return Summary{
		PassID:       passID,
		EventsByKind: map[gym.EventKind]int{},
		Failures:     []GymFailure{},
	}
}

// Reconciled is the number of gyms whose pass committed.
func (s Summary) Reconciled() int {
	return s.GymsInserted + s.GymsUpdated + s.GymsUnchanged
}

// HasFailures reports whether any fault was recorded.
func (s Summary) HasFailures() bool {
	return len(s.Failures) > 0
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("pass_id", s.PassID),
		slog.Int("inserted", s.GymsInserted),
		slog.Int("updated", s.GymsUpdated),
		slog.Int("unchanged", s.GymsUnchanged),
		slog.Int("skipped", s.GymsSkipped),
		slog.Int("events", s.EventsEmitted),
		slog.Int("memberships_dropped", s.MembershipsDropped),
		slog.Int("trainers", s.TrainersUpserted),
		slog.Int("creatures", s.CreaturesUpserted),
		slog.Int("failures", len(s.Failures)),
	)
}
