package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gymlog/internal/gym"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser()
	require.NoError(t, err)
	return p
}

func TestParse_FullRecord(t *testing.T) {
	p := newTestParser(t)
	records, err := ReadBatchFile("testdata/batch.json")
	require.NoError(t, err)
	require.Len(t, records, 3)

	obs, err := p.Parse(0, records[0])
	require.NoError(t, err)

	assert.Equal(t, gym.Gym{
		ID:             "e4a5b7d2f3c14b9e8a6d0c1f2e3d4c5b.16",
		Name:           "Catedral de Santiago",
		Description:    "Praza do Obradoiro",
		Team:           gym.TeamMystic,
		GuardSpeciesID: 131,
		Points:         4500,
		InBattle:       true,
		Enabled:        true,
		Latitude:       42.880596,
		Longitude:      -8.545931,
		LastModified:   time.Date(2016, time.August, 1, 12, 0, 0, 0, time.UTC),
	}, obs.Gym)

	require.Len(t, obs.Occupants, 2)
	assert.Equal(t, gym.Occupant{
		TrainerName:  "Misty",
		TrainerLevel: 22,
		CreatureID:   "13591712009245239999",
		SpeciesID:    131,
		CP:           1854,
		OwnerName:    "Misty",
	}, obs.Occupants[0])
	assert.Equal(t, "Brock", obs.Occupants[1].TrainerName, "names are trimmed")
	assert.Equal(t, "8831224510023", obs.Occupants[1].CreatureID)
}

func TestParse_AbsentFieldsDefault(t *testing.T) {
	p := newTestParser(t)
	records, err := ReadBatchFile("testdata/batch.json")
	require.NoError(t, err)

	obs, err := p.Parse(1, records[1])
	require.NoError(t, err)

	assert.Equal(t, gym.Uncontested, obs.Gym.Team)
	assert.Equal(t, 0, obs.Gym.GuardSpeciesID)
	assert.Equal(t, 0, obs.Gym.Points)
	assert.False(t, obs.Gym.InBattle)
	assert.Equal(t, "", obs.Gym.Description)
	assert.Empty(t, obs.Occupants)
	assert.NotNil(t, obs.Occupants)
}

func TestParse_MissingStateIsMalformed(t *testing.T) {
	p := newTestParser(t)
	records, err := ReadBatchFile("testdata/batch.json")
	require.NoError(t, err)

	_, err = p.Parse(2, records[2])
	require.Error(t, err)

	var me *MalformedError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 2, me.Index)
	assert.Equal(t, "", me.GymID)
}

func TestParse_Malformed(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name  string
		raw   string
		gymID string
	}{
		{"not json", `{"name": `, ""},
		{"not an object", `[1, 2]`, ""},
		{
			"team is a string",
			`{"name":"x","gym_state":{"fort_data":{"id":"g1","owned_by_team":"blue","enabled":true,"latitude":1,"longitude":1,"last_modified_timestamp_ms":1}}}`,
			"g1",
		},
		{
			"negative points",
			`{"name":"x","gym_state":{"fort_data":{"id":"g1","gym_points":-10,"enabled":true,"latitude":1,"longitude":1,"last_modified_timestamp_ms":1}}}`,
			"g1",
		},
		{
			"missing enabled",
			`{"name":"x","gym_state":{"fort_data":{"id":"g1","latitude":1,"longitude":1,"last_modified_timestamp_ms":1}}}`,
			"g1",
		},
		{
			"empty id",
			`{"name":"x","gym_state":{"fort_data":{"id":"","enabled":true,"latitude":1,"longitude":1,"last_modified_timestamp_ms":1}}}`,
			"",
		},
		{
			"membership without trainer profile",
			`{"name":"x","gym_state":{"fort_data":{"id":"g1","enabled":true,"latitude":1,"longitude":1,"last_modified_timestamp_ms":1},
			  "memberships":[{"pokemon_data":{"id":1,"pokemon_id":1,"cp":10,"owner_name":"a"}}]}}`,
			"g1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(7, []byte(tt.raw))
			require.Error(t, err)
			var me *MalformedError
			require.True(t, errors.As(err, &me), "want MalformedError, got %T", err)
			assert.Equal(t, 7, me.Index)
			assert.Equal(t, tt.gymID, me.GymID)
			assert.NotEmpty(t, me.Reason)
		})
	}
}

func TestParse_YAMLBatch(t *testing.T) {
	p := newTestParser(t)
	records, err := ReadBatchFile("testdata/batch.yaml")
	require.NoError(t, err)
	require.Len(t, records, 1)

	obs, err := p.Parse(0, records[0])
	require.NoError(t, err)
	assert.Equal(t, "abastos.16", obs.Gym.ID)
	assert.Equal(t, gym.TeamInstinct, obs.Gym.Team)
	assert.Equal(t, 5, obs.Gym.Level())
	require.Len(t, obs.Occupants, 1)
	assert.Equal(t, "77", obs.Occupants[0].CreatureID)
	assert.Equal(t, "Gary", obs.Occupants[0].TrainerName)
}

func TestMalformedError_Message(t *testing.T) {
	err := &MalformedError{Index: 3, GymID: "g1", Reason: "bad"}
	assert.Equal(t, "malformed record 3 (gym g1): bad", err.Error())

	err = &MalformedError{Index: 0, Reason: "bad"}
	assert.Equal(t, "malformed record 0: bad", err.Error())
}
