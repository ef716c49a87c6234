package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/gymlog/internal/gym"
)

const gymColumns = `id, name, description, team, guard_species_id, points, in_battle, enabled,
	latitude, longitude, last_modified, last_checked`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// GetGym returns the projection for id, or ErrNotFound.
func (s *Store) GetGym(ctx context.Context, id string) (gym.Gym, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gymColumns+` FROM gyms WHERE id = ?`, id)
	g, err := scanGym(row)
	if errors.Is(err, sql.ErrNoRows) {
		return gym.Gym{}, fmt.Errorf("gym %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return gym.Gym{}, fmt.Errorf("get gym: %w", err)
	}
	return g, nil
}

// GetTrainer returns the trainer named name, or ErrNotFound.
func (s *Store) GetTrainer(ctx context.Context, name string) (gym.Trainer, error) {
	var t gym.Trainer
	var checked sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT name, level, team, last_checked FROM trainers WHERE name = ?
	`, name).Scan(&t.Name, &t.Level, &t.Team, &checked)
	if errors.Is(err, sql.ErrNoRows) {
		return gym.Trainer{}, fmt.Errorf("trainer %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return gym.Trainer{}, fmt.Errorf("get trainer: %w", err)
	}
	t.LastChecked = fromMillis(checked)
	return t, nil
}

// GetCreature returns the creature with instance id, or ErrNotFound.
func (s *Store) GetCreature(ctx context.Context, id string) (gym.Creature, error) {
	var c gym.Creature
	var checked sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner, species_id, cp, last_checked FROM creatures WHERE id = ?
	`, id).Scan(&c.ID, &c.Owner, &c.SpeciesID, &c.CP, &checked)
	if errors.Is(err, sql.ErrNoRows) {
		return gym.Creature{}, fmt.Errorf("creature %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return gym.Creature{}, fmt.Errorf("get creature: %w", err)
	}
	c.LastChecked = fromMillis(checked)
	return c, nil
}

// GymMembers returns the current memberships of a gym ordered by trainer.
// Returns an empty slice (not nil) when the gym has none.
func (s *Store) GymMembers(ctx context.Context, gymID string) ([]gym.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gym_id, trainer, creature_id, added_at
		FROM memberships
		WHERE gym_id = ?
		ORDER BY trainer COLLATE BINARY ASC
	`, gymID)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	members := []gym.Membership{}
	for rows.Next() {
		var m gym.Membership
		var added sql.NullInt64
		if err := rows.Scan(&m.GymID, &m.Trainer, &m.CreatureID, &added); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.AddedAt = fromMillis(added)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return members, nil
}

// ListGyms returns every gym ordered by name, then id.
func (s *Store) ListGyms(ctx context.Context) ([]gym.Gym, error) {
	return s.queryGyms(ctx, `SELECT `+gymColumns+` FROM gyms ORDER BY name COLLATE BINARY ASC, id COLLATE BINARY ASC`)
}

// GymsModifiedAfter returns gyms whose last_modified is strictly after t,
// ordered by last_modified then id.
func (s *Store) GymsModifiedAfter(ctx context.Context, t time.Time) ([]gym.Gym, error) {
	return s.queryGyms(ctx, `
		SELECT `+gymColumns+` FROM gyms
		WHERE last_modified > ?
		ORDER BY last_modified ASC, id COLLATE BINARY ASC
	`, t.UnixMilli())
}

func (s *Store) queryGyms(ctx context.Context, query string, args ...any) ([]gym.Gym, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query gyms: %w", err)
	}
	defer rows.Close()

	gyms := []gym.Gym{}
	for rows.Next() {
		g, err := scanGym(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gym: %w", err)
		}
		gyms = append(gyms, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gyms: %w", err)
	}
	return gyms, nil
}

func scanGym(row scanner) (gym.Gym, error) {
	var g gym.Gym
	var inBattle, enabled int
	var modified, checked sql.NullInt64
	if err := row.Scan(
		&g.ID, &g.Name, &g.Description, &g.Team, &g.GuardSpeciesID, &g.Points,
		&inBattle, &enabled, &g.Latitude, &g.Longitude, &modified, &checked,
	); err != nil {
		return gym.Gym{}, err
	}
	g.InBattle = inBattle != 0
	g.Enabled = enabled != 0
	g.LastModified = fromMillis(modified)
	g.LastChecked = fromMillis(checked)
	return g, nil
}

// TrainersByLevel returns trainers ordered by level descending, then name.
// A limit <= 0 returns every trainer.
func (s *Store) TrainersByLevel(ctx context.Context, limit int) ([]gym.Trainer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, level, team, last_checked
		FROM trainers
		ORDER BY level DESC, name COLLATE BINARY ASC
		LIMIT ?
	`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query trainers: %w", err)
	}
	defer rows.Close()

	trainers := []gym.Trainer{}
	for rows.Next() {
		var t gym.Trainer
		var checked sql.NullInt64
		if err := rows.Scan(&t.Name, &t.Level, &t.Team, &checked); err != nil {
			return nil, fmt.Errorf("scan trainer: %w", err)
		}
		t.LastChecked = fromMillis(checked)
		trainers = append(trainers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trainers: %w", err)
	}
	return trainers, nil
}

// TrainerGymCount is a trainer with the number of gyms it currently holds.
type TrainerGymCount struct {
	Trainer gym.Trainer `json:"trainer"`
	Gyms    int         `json:"gyms"`
}

// TrainersByMembershipCount returns trainers holding at least one gym,
// ordered by the number of current memberships descending, then name.
// Memberships whose trainer row is missing report level 0 and team 0.
func (s *Store) TrainersByMembershipCount(ctx context.Context, limit int) ([]TrainerGymCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.trainer, COALESCE(t.level, 0), COALESCE(t.team, 0), COALESCE(t.last_checked, 0),
		       COUNT(*) AS gyms
		FROM memberships m
		LEFT JOIN trainers t ON t.name = m.trainer
		GROUP BY m.trainer
		ORDER BY gyms DESC, m.trainer COLLATE BINARY ASC
		LIMIT ?
	`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query trainer gym counts: %w", err)
	}
	defer rows.Close()

	counts := []TrainerGymCount{}
	for rows.Next() {
		var c TrainerGymCount
		var checked sql.NullInt64
		if err := rows.Scan(&c.Trainer.Name, &c.Trainer.Level, &c.Trainer.Team, &checked, &c.Gyms); err != nil {
			return nil, fmt.Errorf("scan trainer gym count: %w", err)
		}
		c.Trainer.LastChecked = fromMillis(checked)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trainer gym counts: %w", err)
	}
	return counts, nil
}

// TeamCount is the number of gyms a team controls.
type TeamCount struct {
	Team int `json:"team"`
	Gyms int `json:"gyms"`
}

// GymsByTeam returns gym counts per controlling team, largest first.
func (s *Store) GymsByTeam(ctx context.Context) ([]TeamCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team, COUNT(*) AS gyms
		FROM gyms
		GROUP BY team
		ORDER BY gyms DESC, team ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query team counts: %w", err)
	}
	defer rows.Close()

	counts := []TeamCount{}
	for rows.Next() {
		var c TeamCount
		if err := rows.Scan(&c.Team, &c.Gyms); err != nil {
			return nil, fmt.Errorf("scan team count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team counts: %w", err)
	}
	return counts, nil
}

// MemberDetail is a membership joined with its trainer and creature rows.
type MemberDetail struct {
	Trainer      string `json:"trainer"`
	TrainerLevel int    `json:"trainer_level"`
	CreatureID   string `json:"creature_id"`
	SpeciesID    int    `json:"species_id"`
	CP           int    `json:"cp"`
}

// GymMemberDetails returns a gym's garrison ordered by creature CP descending.
func (s *Store) GymMemberDetails(ctx context.Context, gymID string) ([]MemberDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.trainer, COALESCE(t.level, 0), m.creature_id,
		       COALESCE(c.species_id, 0), COALESCE(c.cp, 0)
		FROM memberships m
		LEFT JOIN trainers t ON t.name = m.trainer
		LEFT JOIN creatures c ON c.id = m.creature_id
		WHERE m.gym_id = ?
		ORDER BY COALESCE(c.cp, 0) DESC, m.trainer COLLATE BINARY ASC
	`, gymID)
	if err != nil {
		return nil, fmt.Errorf("query member details: %w", err)
	}
	defer rows.Close()

	details := []MemberDetail{}
	for rows.Next() {
		var d MemberDetail
		if err := rows.Scan(&d.Trainer, &d.TrainerLevel, &d.CreatureID, &d.SpeciesID, &d.CP); err != nil {
			return nil, fmt.Errorf("scan member detail: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member details: %w", err)
	}
	return details, nil
}

// EventFilter narrows ReadEvents. Zero values mean "no filter".
type EventFilter struct {
	GymID  string
	PassID string
	Kind   gym.EventKind
	Limit  int
}

// ReadEvents returns log events in insertion order.
func (s *Store) ReadEvents(ctx context.Context, f EventFilter) ([]gym.Event, error) {
	query := `
		SELECT id, pass_id, seq, ts, gym_id, kind, trainer, points_delta, points, old_team, new_team
		FROM gym_events
		WHERE (? = '' OR gym_id = ?)
		  AND (? = '' OR pass_id = ?)
		  AND (? = '' OR kind = ?)
		ORDER BY id ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query,
		f.GymID, f.GymID,
		f.PassID, f.PassID,
		string(f.Kind), string(f.Kind),
		sqlLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []gym.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// CountEvents returns the total number of log events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gym_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// KindCount is the number of log events of one kind.
type KindCount struct {
	Kind   gym.EventKind `json:"kind"`
	Events int           `json:"events"`
}

// EventsByKind returns log event counts per kind, ordered by kind.
func (s *Store) EventsByKind(ctx context.Context) ([]KindCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM gym_events
		GROUP BY kind
		ORDER BY kind ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query event kinds: %w", err)
	}
	defer rows.Close()

	counts := []KindCount{}
	for rows.Next() {
		var c KindCount
		if err := rows.Scan(&c.Kind, &c.Events); err != nil {
			return nil, fmt.Errorf("scan event kind: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event kinds: %w", err)
	}
	return counts, nil
}

func scanEvent(row scanner) (gym.Event, error) {
	var ev gym.Event
	var ts sql.NullInt64
	var kind string
	var trainer sql.NullString
	var delta, points, oldTeam, newTeam sql.NullInt64
	if err := row.Scan(
		&ev.ID, &ev.PassID, &ev.Seq, &ts, &ev.GymID, &kind,
		&trainer, &delta, &points, &oldTeam, &newTeam,
	); err != nil {
		return gym.Event{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Timestamp = fromMillis(ts)
	ev.Kind = gym.EventKind(kind)
	ev.Trainer = trainer.String
	ev.PointsDelta = intPtr(delta)
	ev.Points = intPtr(points)
	ev.OldTeam = intPtr(oldTeam)
	ev.NewTeam = intPtr(newTeam)
	return ev, nil
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
