package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gymlog/internal/gym"
	"github.com/roach88/gymlog/internal/store"
	"github.com/roach88/gymlog/internal/testutil"
)

func testReconcileCommand(format string) *cobra.Command {
	return newReconcileCommand(&ReconcileOptions{
		RootOptions: testRootOptions(format),
		PassIDs:     testutil.NewSequentialPassIDs(""),
		Clock:       testutil.NewDeterministicClock(),
	})
}

func TestReconcile_MissingFiles(t *testing.T) {
	_, err := execute(t, testReconcileCommand("text"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReconcile_UnreadableBatch(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "gymlog.db")

	_, err := execute(t, testReconcileCommand("text"), "--db", db, filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReconcile_InvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	batch := writeFile(t, dir, "one.json", batchOne)

	_, err := execute(t, testReconcileCommand("text"), "--db", filepath.Join(dir, "g.db"), "--policy", "never", batch)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReconcile_TwoPasses(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "gymlog.db")
	one := writeFile(t, dir, "one.json", batchOne)
	two := writeFile(t, dir, "two.json", batchTwo)

	out, err := execute(t, testReconcileCommand("text"), "--db", db, one, two)
	require.Error(t, err, "the broken record fails the run")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "one.json: pass pass-0001\n")
	assert.Contains(t, out, "  gyms: 2 inserted, 0 updated, 0 unchanged, 0 skipped\n")
	assert.Contains(t, out, "two.json: pass pass-0002\n")
	assert.Contains(t, out, "  gyms: 0 inserted, 1 updated, 0 unchanged, 1 skipped\n")
	assert.Contains(t, out, "  events: 2 member_left=1 points_gained=1\n")
	assert.Contains(t, out, "  FAIL malformed: malformed record 1:")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	events, err := st.ReadEvents(context.Background(), store.EventFilter{GymID: "g1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, gym.EventPointsGained, events[0].Kind)
	assert.Equal(t, gym.EventMemberLeft, events[1].Kind)
	assert.Equal(t, "Ash", events[1].Trainer)
}

func TestReconcile_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	one := writeFile(t, dir, "one.json", batchOne)

	out, err := execute(t, testReconcileCommand("json"), "--db", filepath.Join(dir, "g.db"), one)
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   ReconcileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Batches, 1)
	assert.Equal(t, 2, resp.Data.Batches[0].Summary.GymsInserted)
	assert.Equal(t, 1, resp.Data.Batches[0].Summary.TrainersUpserted)
	assert.Zero(t, resp.Data.Failures)
}

func TestReconcile_NoHeartbeat(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "g.db")
	one := writeFile(t, dir, "one.json", batchOne)

	_, err := execute(t, testReconcileCommand("text"), "--db", db, "--no-heartbeat", one, one)
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	n, err := st.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconcile_ModifiedPolicyFromConfig(t *testing.T) {
	dir := t.TempDir()
	one := writeFile(t, dir, "one.json", batchOne)

	opts := &ReconcileOptions{
		RootOptions: testRootOptions("json"),
		PassIDs:     testutil.NewSequentialPassIDs(""),
	}
	opts.Config.DiffPolicy = "modified"
	opts.Config.DBPath = filepath.Join(dir, "from-config.db")

	out, err := execute(t, newReconcileCommand(opts), one, one)
	require.NoError(t, err)

	var resp struct {
		Data ReconcileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Batches, 2)
	assert.Equal(t, 2, resp.Data.Batches[1].Summary.GymsUnchanged)
	assert.Zero(t, resp.Data.Batches[1].Summary.EventsEmitted)
	assert.FileExists(t, opts.Config.DBPath)
}

func TestReconcile_MetricsFile(t *testing.T) {
	dir := t.TempDir()
	one := writeFile(t, dir, "one.json", batchOne)
	two := writeFile(t, dir, "two.json", batchTwo)
	prom := filepath.Join(dir, "gymlog.prom")

	_, err := execute(t, testReconcileCommand("text"),
		"--db", filepath.Join(dir, "g.db"), "--metrics-file", prom, one, two)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "gymlog_reconcile_passes_total 2\n")
	assert.Contains(t, text, `gymlog_reconcile_gyms_total{outcome="inserted"} 2`)
	assert.Contains(t, text, `gymlog_reconcile_gyms_total{outcome="updated"} 1`)
	assert.Contains(t, text, `gymlog_reconcile_gyms_total{outcome="malformed"} 1`)
	assert.Contains(t, text, `gymlog_reconcile_events_total{kind="points_gained"} 1`)
}

func TestReconcile_MetricsFileUnwritable(t *testing.T) {
	dir := t.TempDir()
	one := writeFile(t, dir, "one.json", batchOne)

	_, err := execute(t, testReconcileCommand("text"),
		"--db", filepath.Join(dir, "g.db"), "--metrics-file", filepath.Join(dir, "missing", "gymlog.prom"), one)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
