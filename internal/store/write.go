package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/gymlog/internal/gym"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertGymSQL = `
	INSERT INTO gyms
	(id, name, description, team, guard_species_id, points, in_battle, enabled,
	 latitude, longitude, last_modified, last_checked)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		team = excluded.team,
		guard_species_id = excluded.guard_species_id,
		points = excluded.points,
		in_battle = excluded.in_battle,
		enabled = excluded.enabled,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		last_modified = CASE
			WHEN gyms.last_modified IS NULL OR excluded.last_modified > gyms.last_modified
			THEN excluded.last_modified
			ELSE gyms.last_modified
		END,
		last_checked = excluded.last_checked
`

const upsertTrainerSQL = `
	INSERT INTO trainers (name, level, team, last_checked)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		level = excluded.level,
		team = excluded.team,
		last_checked = excluded.last_checked
`

const upsertCreatureSQL = `
	INSERT INTO creatures (id, owner, species_id, cp, last_checked)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner = excluded.owner,
		species_id = excluded.species_id,
		cp = excluded.cp,
		last_checked = excluded.last_checked
`

const insertEventSQL = `
	INSERT INTO gym_events
	(pass_id, seq, ts, gym_id, kind, trainer, points_delta, points, old_team, new_team)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// GymPass is everything one reconciliation pass writes for a single gym.
type GymPass struct {
	Events  []gym.Event
	Gym     gym.Gym
	Members []gym.Membership

	// CheckedOnly refreshes last_checked of an existing gym and nothing
	// else; Events and Members must be empty.
	CheckedOnly bool
}

// ApplyGymPass atomically upserts the gym projection, appends the pass's
// events and replaces the gym's memberships.
//
// The stored last_modified never moves backwards.
//
// Returns the events with their assigned insertion ids.
func (s *Store) ApplyGymPass(ctx context.Context, pass GymPass) ([]gym.Event, error) {
	if pass.CheckedOnly {
		if len(pass.Events) > 0 || len(pass.Members) > 0 {
			return nil, fmt.Errorf("apply gym pass %s: checked-only pass carries events or members", pass.Gym.ID)
		}
		if err := touchGym(ctx, s.db, pass.Gym.ID, pass.Gym.LastChecked); err != nil {
			return nil, fmt.Errorf("apply gym pass %s: %w", pass.Gym.ID, err)
		}
		return []gym.Event{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("apply gym pass: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertGym(ctx, tx, pass.Gym); err != nil {
		return nil, fmt.Errorf("apply gym pass %s: %w", pass.Gym.ID, err)
	}

	written, err := appendEvents(ctx, tx, pass.Events)
	if err != nil {
		return nil, fmt.Errorf("apply gym pass %s: %w", pass.Gym.ID, err)
	}

	if err := replaceMemberships(ctx, tx, pass.Gym.ID, pass.Members); err != nil {
		return nil, fmt.Errorf("apply gym pass %s: %w", pass.Gym.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("apply gym pass %s: commit: %w", pass.Gym.ID, err)
	}

	return written, nil
}

// UpsertTrainers inserts or overwrites trainers keyed by name.
// Returns the row count.
func (s *Store) UpsertTrainers(ctx context.Context, trainers []gym.Trainer) (int, error) {
	return s.inTx(ctx, "upsert trainers", func(tx *sql.Tx) (int, error) {
		stmt, err := tx.PrepareContext(ctx, upsertTrainerSQL)
		if err != nil {
			return 0, fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, t := range trainers {
			if _, err := stmt.ExecContext(ctx, t.Name, t.Level, t.Team, toMillis(t.LastChecked)); err != nil {
				return 0, fmt.Errorf("trainer %q: %w", t.Name, err)
			}
		}
		return len(trainers), nil
	})
}

// UpsertCreatures inserts or overwrites creatures keyed by instance id.
// Returns the row count.
func (s *Store) UpsertCreatures(ctx context.Context, creatures []gym.Creature) (int, error) {
	return s.inTx(ctx, "upsert creatures", func(tx *sql.Tx) (int, error) {
		stmt, err := tx.PrepareContext(ctx, upsertCreatureSQL)
		if err != nil {
			return 0, fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, c := range creatures {
			if _, err := stmt.ExecContext(ctx, c.ID, c.Owner, c.SpeciesID, c.CP, toMillis(c.LastChecked)); err != nil {
				return 0, fmt.Errorf("creature %q: %w", c.ID, err)
			}
		}
		return len(creatures), nil
	})
}

// inTx runs fn in a transaction and wraps its error with op.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) (int, error)) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	n, err := fn(tx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}
	return n, nil
}

func upsertGym(ctx context.Context, ex execer, g gym.Gym) error {
	_, err := ex.ExecContext(ctx, upsertGymSQL,
		g.ID,
		g.Name,
		g.Description,
		g.Team,
		g.GuardSpeciesID,
		g.Points,
		boolToInt(g.InBattle),
		boolToInt(g.Enabled),
		g.Latitude,
		g.Longitude,
		toMillis(g.LastModified),
		toMillis(g.LastChecked),
	)
	if err != nil {
		return fmt.Errorf("upsert gym %q: %w", g.ID, err)
	}
	return nil
}

func touchGym(ctx context.Context, ex execer, id string, checked time.Time) error {
	res, err := ex.ExecContext(ctx, `UPDATE gyms SET last_checked = ? WHERE id = ?`, toMillis(checked), id)
	if err != nil {
		return fmt.Errorf("touch gym %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch gym %q: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("touch gym %q: %w", id, ErrNotFound)
	}
	return nil
}

func replaceMemberships(ctx context.Context, ex execer, gymID string, members []gym.Membership) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM memberships WHERE gym_id = ?`, gymID); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}

	for _, m := range members {
		if m.GymID != gymID {
			return fmt.Errorf("membership for gym %q in replace of %q", m.GymID, gymID)
		}
		_, err := ex.ExecContext(ctx, `
			INSERT INTO memberships (gym_id, trainer, creature_id, added_at)
			VALUES (?, ?, ?, ?)
		`, m.GymID, m.Trainer, m.CreatureID, toMillis(m.AddedAt))
		if err != nil {
			return fmt.Errorf("insert membership %q: %w", m.Trainer, err)
		}
	}
	return nil
}

func appendEvents(ctx context.Context, ex execer, events []gym.Event) ([]gym.Event, error) {
	written := make([]gym.Event, 0, len(events))
	for _, ev := range events {
		if !ev.Kind.Valid() {
			return nil, fmt.Errorf("append event: unknown kind %q", ev.Kind)
		}
		res, err := ex.ExecContext(ctx, insertEventSQL,
			ev.PassID,
			ev.Seq,
			toMillis(ev.Timestamp),
			ev.GymID,
			string(ev.Kind),
			nullString(ev.Trainer),
			nullInt(ev.PointsDelta),
			nullInt(ev.Points),
			nullInt(ev.OldTeam),
			nullInt(ev.NewTeam),
		)
		if err != nil {
			return nil, fmt.Errorf("append event %s: %w", ev.Kind, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("append event: last insert id: %w", err)
		}
		ev.ID = id
		written = append(written, ev)
	}
	return written, nil
}
