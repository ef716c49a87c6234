package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/gymlog/internal/gym"
)

var testTime = time.Date(2016, time.August, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestGym creates a gym with minimal required fields.
func createTestGym(id, name string, team, points int) gym.Gym {
	return gym.Gym{
		ID:           id,
		Name:         name,
		Description:  "",
		Team:         team,
		Points:       points,
		Enabled:      true,
		Latitude:     42.8805,
		Longitude:    -8.5457,
		LastModified: testTime.Add(-time.Hour),
		LastChecked:  testTime,
	}
}

// seedGym inserts a gym projection, failing the test on error.
func seedGym(t *testing.T, s *Store, g gym.Gym) {
	t.Helper()
	if _, err := s.upsertGyms(context.Background(), []gym.Gym{g}); err != nil {
		t.Fatalf("upsertGyms() failed: %v", err)
	}
}

func membership(gymID, trainer string) gym.Membership {
	return gym.Membership{GymID: gymID, Trainer: trainer, CreatureID: trainer + "-mon", AddedAt: testTime}
}

// upsertGyms writes gym rows outside a reconciliation pass.
func (s *Store) upsertGyms(ctx context.Context, gyms []gym.Gym) (int, error) {
	return s.inTx(ctx, "upsert gyms", func(tx *sql.Tx) (int, error) {
		for _, g := range gyms {
			if err := upsertGym(ctx, tx, g); err != nil {
				return 0, err
			}
		}
		return len(gyms), nil
	})
}

// putMemberships replaces a gym's memberships outside a reconciliation pass.
func (s *Store) putMemberships(ctx context.Context, gymID string, members []gym.Membership) error {
	_, err := s.inTx(ctx, "replace memberships", func(tx *sql.Tx) (int, error) {
		return len(members), replaceMemberships(ctx, tx, gymID, members)
	})
	return err
}

// putEvents appends events outside a reconciliation pass.
func (s *Store) putEvents(ctx context.Context, events []gym.Event) ([]gym.Event, error) {
	var written []gym.Event
	_, err := s.inTx(ctx, "append events", func(tx *sql.Tx) (int, error) {
		var err error
		written, err = appendEvents(ctx, tx, events)
		return len(written), err
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}
