package report

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gymlog/internal/gym"
	"github.com/roach88/gymlog/internal/store"
	"github.com/roach88/gymlog/internal/testutil"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	now := testutil.Epoch
	g1 := gym.Gym{ID: "g1", Name: "Catedral", Team: gym.TeamMystic, Points: 12000, InBattle: true, Enabled: true, LastModified: now, LastChecked: now}
	g2 := gym.Gym{ID: "g2", Name: "Alameda", Team: gym.TeamValor, Points: 1500, Enabled: true, LastModified: now, LastChecked: now}
	g3 := gym.Gym{ID: "g3", Name: "Abastos", Team: gym.TeamMystic, Enabled: true, LastModified: now, LastChecked: now}

	_, err = s.UpsertTrainers(ctx, []gym.Trainer{
		{Name: "Misty", Level: 24, Team: gym.TeamMystic, LastChecked: now},
		{Name: "Brock", Level: 21, Team: gym.TeamMystic, LastChecked: now},
		{Name: "Gary", Level: 30, Team: gym.TeamValor, LastChecked: now},
	})
	require.NoError(t, err)

	_, err = s.UpsertCreatures(ctx, []gym.Creature{
		{ID: "c1", Owner: "Misty", SpeciesID: 131, CP: 1854, LastChecked: now},
		{ID: "c2", Owner: "Brock", SpeciesID: 95, CP: 1620, LastChecked: now},
		{ID: "c3", Owner: "Gary", SpeciesID: 59, CP: 2100, LastChecked: now},
		{ID: "c4", Owner: "Misty", SpeciesID: 121, CP: 900, LastChecked: now},
	})
	require.NoError(t, err)

	passes := []store.GymPass{
		{
			Gym: g1,
			Members: []gym.Membership{
				{GymID: "g1", Trainer: "Brock", CreatureID: "c2", AddedAt: now},
				{GymID: "g1", Trainer: "Misty", CreatureID: "c1", AddedAt: now},
			},
			Events: []gym.Event{
				{PassID: "pass-0001", Seq: 0, Timestamp: now, GymID: "g1", Kind: gym.EventPointsGained, PointsDelta: gym.Int(500), Points: gym.Int(12000)},
				{PassID: "pass-0001", Seq: 1, Timestamp: now, GymID: "g1", Kind: gym.EventMemberJoined, Trainer: "Misty"},
			},
		},
		{
			Gym:     g2,
			Members: []gym.Membership{{GymID: "g2", Trainer: "Gary", CreatureID: "c3", AddedAt: now}},
			Events: []gym.Event{
				{PassID: "pass-0001", Seq: 2, Timestamp: now.Add(time.Second), GymID: "g2", Kind: gym.EventTeamChanged, OldTeam: gym.Int(1), NewTeam: gym.Int(2), Points: gym.Int(1500)},
			},
		},
		{
			Gym:     g3,
			Members: []gym.Membership{{GymID: "g3", Trainer: "Misty", CreatureID: "c4", AddedAt: now}},
		},
	}
	for _, p := range passes {
		_, err = s.ApplyGymPass(ctx, p)
		require.NoError(t, err)
	}
	return s
}

func render(t *testing.T, r TextWriter) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	return buf.String()
}

func TestBuildTeams(t *testing.T) {
	r, err := BuildTeams(context.Background(), seededStore(t))
	require.NoError(t, err)

	assert.Equal(t, 3, r.Total)
	require.Len(t, r.Teams, 2)
	assert.Equal(t, "Mystic", r.Teams[0].Name)
	assert.Equal(t, 2, r.Teams[0].Gyms)
	assert.InDelta(t, 66.67, r.Teams[0].Percent, 0.01)
	assert.Equal(t, "Valor", r.Teams[1].Name)

	lines := strings.Split(strings.TrimSpace(render(t, r)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"Mystic", "2", "gyms", "66.7%"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"Total", "3", "gyms"}, strings.Fields(lines[2]))
}

func TestBuildTopTrainers(t *testing.T) {
	r, err := BuildTopTrainers(context.Background(), seededStore(t), 2)
	require.NoError(t, err)

	require.Len(t, r.Trainers, 2)
	assert.Equal(t, TrainerRow{Rank: 1, Name: "Gary", Level: 30, Team: "Valor"}, r.Trainers[0])
	assert.Equal(t, "Misty", r.Trainers[1].Name)

	lines := strings.Split(strings.TrimSpace(render(t, r)), "\n")
	assert.Equal(t, []string{"1.", "Gary", "L30", "Valor"}, strings.Fields(lines[0]))
}

func TestBuildTopOwners(t *testing.T) {
	r, err := BuildTopOwners(context.Background(), seededStore(t), 0)
	require.NoError(t, err)

	require.Len(t, r.Trainers, 3)
	assert.Equal(t, "Misty", r.Trainers[0].Name)
	assert.Equal(t, 2, r.Trainers[0].Gyms)
	assert.Equal(t, "Brock", r.Trainers[1].Name)
	assert.Equal(t, "Gary", r.Trainers[2].Name)

	lines := strings.Split(strings.TrimSpace(render(t, r)), "\n")
	assert.Equal(t, []string{"1.", "Misty", "L24", "Mystic", "2", "gyms"}, strings.Fields(lines[0]))
}

func TestBuildGyms(t *testing.T) {
	r, err := BuildGyms(context.Background(), seededStore(t))
	require.NoError(t, err)

	require.Len(t, r.Gyms, 3)
	cat := r.Gyms[2]
	assert.Equal(t, "Catedral", cat.Name)
	assert.Equal(t, 5, cat.Level)
	require.Len(t, cat.Members, 2)
	assert.Equal(t, "Misty", cat.Members[0].Trainer)

	text := render(t, r)
	assert.Contains(t, text, "Catedral (Mystic) L5 12,000 points [in battle]\n")
	assert.Contains(t, text, "1,854 CP  Misty (L24)\n")
	assert.Contains(t, text, "Alameda (Valor) L1 1,500 points\n")
}

func TestBuildEvents(t *testing.T) {
	s := seededStore(t)

	r, err := BuildEvents(context.Background(), s, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "[2016-08-01 12:00:00] Catedral: gained 500 points by training (now 12000)\n"+
		"[2016-08-01 12:00:00] Catedral: Misty joined\n"+
		"[2016-08-01 12:00:01] Alameda: captured by Valor from Mystic (1500 points)\n", render(t, r))

	r, err = BuildEvents(context.Background(), s, "g2", 0)
	require.NoError(t, err)
	require.Len(t, r.Events, 1)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"gym_name":"Alameda"`)
	assert.Contains(t, string(b), `"kind":"team_changed"`)
}

func TestEmptyReports(t *testing.T) {
	assert.Equal(t, "No gyms recorded.\n", render(t, Teams{}))
	assert.Equal(t, "No gyms recorded.\n", render(t, Gyms{}))
	assert.Equal(t, "No trainers recorded.\n", render(t, Trainers{}))
	assert.Equal(t, "No events recorded.\n", render(t, Events{}))
}
