package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gymlog/internal/config"
)

// batchOne is a valid two-gym batch; batchTwo moves Ash out of Catedral.
const batchOne = `[
  {"name": "Catedral", "gym_state": {
    "fort_data": {"id": "g1", "owned_by_team": 1, "gym_points": 5000, "enabled": true,
                  "latitude": 42.88, "longitude": -8.54, "last_modified_timestamp_ms": 1470049200000},
    "memberships": [
      {"pokemon_data": {"id": "101", "pokemon_id": 131, "cp": 1854, "owner_name": "Ash"},
       "trainer_public_profile": {"name": "Ash", "level": 22}}
    ]}},
  {"name": "Alameda", "gym_state": {
    "fort_data": {"id": "g2", "owned_by_team": 2, "gym_points": 1500, "enabled": true,
                  "latitude": 42.87, "longitude": -8.55, "last_modified_timestamp_ms": 1470049200000}}}
]`

const batchTwo = `[
  {"name": "Catedral", "gym_state": {
    "fort_data": {"id": "g1", "owned_by_team": 1, "gym_points": 5500, "enabled": true,
                  "latitude": 42.88, "longitude": -8.54, "last_modified_timestamp_ms": 1470052800000}}},
  {"name": "Broken", "status": "ERROR"}
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testRootOptions(format string) *RootOptions {
	return &RootOptions{Format: format, Config: config.New()}
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
