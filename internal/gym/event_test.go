package gym

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventKind_Valid(t *testing.T) {
	for _, k := range EventKinds() {
		assert.True(t, k.Valid(), "%s should be valid", k)
	}
	assert.False(t, EventKind("gym_exploded").Valid())
	assert.Len(t, EventKinds(), 8)
}

func TestEvent_Describe(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"battle started", Event{Kind: EventBattleStarted}, "battle started"},
		{"battle ended", Event{Kind: EventBattleEnded}, "battle ended"},
		{
			"points gained",
			Event{Kind: EventPointsGained, PointsDelta: Int(500), Points: Int(2500)},
			"gained 500 points by training (now 2500)",
		},
		{
			"points lost",
			Event{Kind: EventPointsLost, PointsDelta: Int(-1000), Points: Int(1500)},
			"lost 1000 points from attack (now 1500)",
		},
		{
			"captured",
			Event{Kind: EventTeamChanged, OldTeam: Int(1), NewTeam: Int(2), Points: Int(3000)},
			"captured by Valor from Mystic (3000 points)",
		},
		{
			"neutral",
			Event{Kind: EventTeamChanged, OldTeam: Int(3), NewTeam: Int(0), Points: Int(0)},
			"returned to neutral from Instinct",
		},
		{"joined", Event{Kind: EventMemberJoined, Trainer: "ash"}, "ash joined"},
		{"left", Event{Kind: EventMemberLeft, Trainer: "misty"}, "misty left"},
		{"heartbeat", Event{Kind: EventNoDetectedChange}, "no detected change"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Describe())
		})
	}
}

func TestObservation_TrainerNames(t *testing.T) {
	obs := Observation{Occupants: []Occupant{{TrainerName: "b"}, {TrainerName: "a"}}}
	assert.Equal(t, []string{"b", "a"}, obs.TrainerNames())
	assert.Empty(t, Observation{}.TrainerNames())
}

func TestNormalizeName(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	assert.Equal(t, "Jos\u00e9", NormalizeName("  Jose\u0301 "))
	assert.Equal(t, "ash", NormalizeName("ash"))
	assert.Equal(t, "", NormalizeName("   "))
}
