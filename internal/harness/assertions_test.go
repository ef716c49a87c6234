package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gymlog/internal/gym"
)

func sampleEvents() []gym.Event {
	ts := time.Date(2016, 8, 1, 12, 0, 0, 0, time.UTC)
	return []gym.Event{
		{PassID: "pass-0002", Seq: 0, Timestamp: ts, GymID: "g1", Kind: gym.EventBattleStarted},
		{PassID: "pass-0002", Seq: 1, Timestamp: ts, GymID: "g1", Kind: gym.EventPointsLost, PointsDelta: gym.Int(-200), Points: gym.Int(800)},
		{PassID: "pass-0002", Seq: 2, Timestamp: ts, GymID: "g2", Kind: gym.EventMemberJoined, Trainer: "Brock"},
		{PassID: "pass-0002", Seq: 3, Timestamp: ts, GymID: "g2", Kind: gym.EventMemberJoined, Trainer: "Misty"},
	}
}

func TestAssertEventContains(t *testing.T) {
	events := sampleEvents()

	assert.NoError(t, assertEventContains(events, Assertion{Kind: "points_lost", Fields: map[string]any{"points_delta": -200, "points": 800}}))
	assert.NoError(t, assertEventContains(events, Assertion{Gym: "g2", Kind: "member_joined", Trainer: "Misty"}))

	err := assertEventContains(events, Assertion{Gym: "g1", Kind: "member_joined"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertEventContains, ae.Type)
	assert.Contains(t, err.Error(), "Event log:")

	assert.Error(t, assertEventContains(events, Assertion{Kind: "points_lost", Fields: map[string]any{"points": 900}}))
	assert.Error(t, assertEventContains(events, Assertion{Kind: "points_lost", Fields: map[string]any{"unknown": 1}}))
	assert.Error(t, assertEventContains(events, Assertion{Kind: "battle_started", Fields: map[string]any{"points": 1}}))
}

func TestAssertEventOrder(t *testing.T) {
	events := sampleEvents()

	assert.NoError(t, assertEventOrder(events, Assertion{Kinds: []string{"battle_started", "member_joined"}}))

	err := assertEventOrder(events, Assertion{Kinds: []string{"member_joined", "battle_started"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertEventOrder(events, Assertion{Gym: "g2", Kinds: []string{"battle_started", "member_joined"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing kind: battle_started")
}

func TestAssertEventCount(t *testing.T) {
	events := sampleEvents()

	assert.NoError(t, assertEventCount(events, Assertion{Kind: "member_joined", Count: 2}))
	assert.NoError(t, assertEventCount(events, Assertion{Gym: "g1", Kind: "member_joined", Count: 0}))
	assert.Error(t, assertEventCount(events, Assertion{Kind: "member_joined", Count: 1}))
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]any{"trainer": "Ash", "gym_id": "g1", "in_battle": true})
	require.NoError(t, err)
	assert.Equal(t, "gym_id = ? AND in_battle = ? AND trainer = ?", sql)
	assert.Equal(t, []any{"g1", 1, "Ash"}, args)

	_, _, err = buildWhereClause(map[string]any{"id; DROP TABLE gyms": 1})
	assert.Error(t, err)
}

func TestStateValuesEqual(t *testing.T) {
	assert.True(t, stateValuesEqual(5, int64(5)))
	assert.True(t, stateValuesEqual("g1", []byte("g1")))
	assert.True(t, stateValuesEqual(false, int64(0)))
	assert.True(t, stateValuesEqual(42.5, 42.5))
	assert.True(t, stateValuesEqual(nil, nil))
	assert.False(t, stateValuesEqual(nil, int64(0)))
	assert.False(t, stateValuesEqual("5", int64(5)))
	assert.False(t, stateValuesEqual(true, int64(0)))
}

func TestEvaluateAssertions_FinalStateNeedsStore(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertFinalState, Table: "gyms"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires database context")
}
