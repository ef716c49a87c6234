package gym

import (
	"fmt"
	"time"
)

// EventKind classifies a state transition in the event log.
type EventKind string

const (
	EventBattleStarted    EventKind = "battle_started"
	EventBattleEnded      EventKind = "battle_ended"
	EventPointsGained     EventKind = "points_gained"
	EventPointsLost       EventKind = "points_lost"
	EventTeamChanged      EventKind = "team_changed"
	EventMemberJoined     EventKind = "member_joined"
	EventMemberLeft       EventKind = "member_left"
	EventNoDetectedChange EventKind = "no_detected_change"
)

// EventKinds lists every kind in classification order.
func EventKinds() []EventKind {
	return []EventKind{
		EventBattleStarted,
		EventBattleEnded,
		EventPointsGained,
		EventPointsLost,
		EventTeamChanged,
		EventMemberJoined,
		EventMemberLeft,
		EventNoDetectedChange,
	}
}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	for _, known := range EventKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Event is one immutable entry of a gym's event log.
//
// Optional attributes are nil when the kind does not carry them. ID is the
// store's insertion order; PassID and Seq identify the reconciliation pass
// that emitted the event and its position within it.
type Event struct {
	ID          int64     `json:"id,omitempty"`
	PassID      string    `json:"pass_id,omitempty"`
	Seq         int       `json:"seq"`
	Timestamp   time.Time `json:"timestamp"`
	GymID       string    `json:"gym_id"`
	Kind        EventKind `json:"kind"`
	Trainer     string    `json:"trainer,omitempty"`
	PointsDelta *int      `json:"points_delta,omitempty"`
	Points      *int      `json:"points,omitempty"`
	OldTeam     *int      `json:"old_team,omitempty"`
	NewTeam     *int      `json:"new_team,omitempty"`
}

// Int returns a pointer to v, for populating optional event attributes.
func Int(v int) *int {
	return &v
}

// Describe renders the event as a short sentence for logs and reports.
func (e Event) Describe() string {
	switch e.Kind {
	case EventBattleStarted:
		return "battle started"
	case EventBattleEnded:
		return "battle ended"
	case EventPointsGained:
		return fmt.Sprintf("gained %d points by training (now %d)", deref(e.PointsDelta), deref(e.Points))
	case EventPointsLost:
		return fmt.Sprintf("lost %d points from attack (now %d)", -deref(e.PointsDelta), deref(e.Points))
	case EventTeamChanged:
		newTeam := deref(e.NewTeam)
		if newTeam == Uncontested {
			return fmt.Sprintf("returned to neutral from %s", TeamName(deref(e.OldTeam)))
		}
		return fmt.Sprintf("captured by %s from %s (%d points)", TeamName(newTeam), TeamName(deref(e.OldTeam)), deref(e.Points))
	case EventMemberJoined:
		return fmt.Sprintf("%s joined", e.Trainer)
	case EventMemberLeft:
		return fmt.Sprintf("%s left", e.Trainer)
	case EventNoDetectedChange:
		return "no detected change"
	default:
		return string(e.Kind)
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
