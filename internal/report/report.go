// Package report builds the read-only views over the gym store: team
// standings, trainer rankings, gym garrisons and the event log.
//
// Every report is a plain struct that marshals to JSON and renders itself as
// text through WriteText.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/gymlog/internal/gym"
	"github.com/roach88/gymlog/internal/store"
)

// Source is the store surface reports read from. *store.Store satisfies it.
type Source interface {
	GymsByTeam(ctx context.Context) ([]store.TeamCount, error)
	TrainersByLevel(ctx context.Context, limit int) ([]gym.Trainer, error)
	TrainersByMembershipCount(ctx context.Context, limit int) ([]store.TrainerGymCount, error)
	ListGyms(ctx context.Context) ([]gym.Gym, error)
	GymMemberDetails(ctx context.Context, gymID string) ([]store.MemberDetail, error)
	ReadEvents(ctx context.Context, f store.EventFilter) ([]gym.Event, error)
}

// TextWriter is implemented by every report.
type TextWriter interface {
	WriteText(w io.Writer) error
}

// printer formats numbers with thousands separators.
var printer = message.NewPrinter(language.English)

const timeLayout = "2006-01-02 15:04:05"

// TeamShare is one team's slice of the map.
type TeamShare struct {
	Team    int     `json:"team"`
	Name    string  `json:"name"`
	Gyms    int     `json:"gyms"`
	Percent float64 `json:"percent"`
}

// Teams is the gym count per controlling team.
type Teams struct {
	Total int         `json:"total"`
	Teams []TeamShare `json:"teams"`
}

// BuildTeams reads gym counts per team, largest first.
func BuildTeams(ctx context.Context, src Source) (Teams, error) {
	counts, err := src.GymsByTeam(ctx)
	if err != nil {
		return Teams{}, fmt.Errorf("teams report: %w", err)
	}

	r := Teams{Teams: make([]TeamShare, 0, len(counts))}
	for _, c := range counts {
		r.Total += c.Gyms
	}
	for _, c := range counts {
		share := TeamShare{Team: c.Team, Name: gym.TeamName(c.Team), Gyms: c.Gyms}
		if r.Total > 0 {
			share.Percent = float64(c.Gyms) * 100 / float64(r.Total)
		}
		r.Teams = append(r.Teams, share)
	}
	return r, nil
}

// WriteText renders one line per team.
func (r Teams) WriteText(w io.Writer) error {
	if r.Total == 0 {
		_, err := fmt.Fprintln(w, "No gyms recorded.")
		return err
	}
	for _, t := range r.Teams {
		if _, err := printer.Fprintf(w, "%-12s %6d gyms %5.1f%%\n", t.Name, t.Gyms, t.Percent); err != nil {
			return err
		}
	}
	_, err := printer.Fprintf(w, "%-12s %6d gyms\n", "Total", r.Total)
	return err
}

// TrainerRow is one ranked trainer.
type TrainerRow struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Level int    `json:"level"`
	Team  string `json:"team"`
	Gyms  int    `json:"gyms,omitempty"`
}

// Trainers is a ranked trainer list.
type Trainers struct {
	// By is "level" or "gyms".
	By       string       `json:"by"`
	Trainers []TrainerRow `json:"trainers"`
}

// BuildTopTrainers ranks trainers by level.
func BuildTopTrainers(ctx context.Context, src Source, limit int) (Trainers, error) {
	trainers, err := src.TrainersByLevel(ctx, limit)
	if err != nil {
		return Trainers{}, fmt.Errorf("trainers report: %w", err)
	}

	r := Trainers{By: "level", Trainers: make([]TrainerRow, 0, len(trainers))}
	for i, t := range trainers {
		r.Trainers = append(r.Trainers, TrainerRow{Rank: i + 1, Name: t.Name, Level: t.Level, Team: gym.TeamName(t.Team)})
	}
	return r, nil
}

// BuildTopOwners ranks trainers by the number of gyms they garrison.
func BuildTopOwners(ctx context.Context, src Source, limit int) (Trainers, error) {
	counts, err := src.TrainersByMembershipCount(ctx, limit)
	if err != nil {
		return Trainers{}, fmt.Errorf("owners report: %w", err)
	}

	r := Trainers{By: "gyms", Trainers: make([]TrainerRow, 0, len(counts))}
	for i, c := range counts {
		r.Trainers = append(r.Trainers, TrainerRow{
			Rank:  i + 1,
			Name:  c.Trainer.Name,
			Level: c.Trainer.Level,
			Team:  gym.TeamName(c.Trainer.Team),
			Gyms:  c.Gyms,
		})
	}
	return r, nil
}

// WriteText renders one line per trainer.
func (r Trainers) WriteText(w io.Writer) error {
	if len(r.Trainers) == 0 {
		_, err := fmt.Fprintln(w, "No trainers recorded.")
		return err
	}
	for _, t := range r.Trainers {
		var err error
		if r.By == "gyms" {
			_, err = printer.Fprintf(w, "%3d. %-20s L%-3d %-12s %d gyms\n", t.Rank, t.Name, t.Level, t.Team, t.Gyms)
		} else {
			_, err = printer.Fprintf(w, "%3d. %-20s L%-3d %s\n", t.Rank, t.Name, t.Level, t.Team)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// GymRow is one gym with its garrison.
type GymRow struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Team     string               `json:"team"`
	Points   int                  `json:"points"`
	Level    int                  `json:"level"`
	InBattle bool                 `json:"in_battle"`
	Modified time.Time            `json:"last_modified"`
	Members  []store.MemberDetail `json:"members"`
}

// Gyms lists every gym.
type Gyms struct {
	Gyms []GymRow `json:"gyms"`
}

// BuildGyms reads every gym, ordered by name, with members by CP.
func BuildGyms(ctx context.Context, src Source) (Gyms, error) {
	gyms, err := src.ListGyms(ctx)
	if err != nil {
		return Gyms{}, fmt.Errorf("gyms report: %w", err)
	}

	r := Gyms{Gyms: make([]GymRow, 0, len(gyms))}
	for _, g := range gyms {
		members, err := src.GymMemberDetails(ctx, g.ID)
		if err != nil {
			return Gyms{}, fmt.Errorf("gyms report: gym %s: %w", g.ID, err)
		}
		r.Gyms = append(r.Gyms, GymRow{
			ID:       g.ID,
			Name:     g.Name,
			Team:     gym.TeamName(g.Team),
			Points:   g.Points,
			Level:    g.Level(),
			InBattle: g.InBattle,
			Modified: g.LastModified,
			Members:  members,
		})
	}
	return r, nil
}

// WriteText renders a header line per gym followed by its members.
func (r Gyms) WriteText(w io.Writer) error {
	if len(r.Gyms) == 0 {
		_, err := fmt.Fprintln(w, "No gyms recorded.")
		return err
	}
	for _, g := range r.Gyms {
		battle := ""
		if g.InBattle {
			battle = " [in battle]"
		}
		if _, err := printer.Fprintf(w, "%s (%s) L%d %d points%s\n", g.Name, g.Team, g.Level, g.Points, battle); err != nil {
			return err
		}
		for _, m := range g.Members {
			if _, err := printer.Fprintf(w, "  %5d CP  %s (L%d)\n", m.CP, m.Trainer, m.TrainerLevel); err != nil {
				return err
			}
		}
	}
	return nil
}

// EventRow is one rendered event.
type EventRow struct {
	gym.Event
	GymName string `json:"gym_name"`
	Text    string `json:"text"`
}

// Events is a slice of the event log in insertion order.
type Events struct {
	Events []EventRow `json:"events"`
}

// BuildEvents reads the event log, optionally for one gym. A limit <= 0
// returns every event.
func BuildEvents(ctx context.Context, src Source, gymID string, limit int) (Events, error) {
	events, err := src.ReadEvents(ctx, store.EventFilter{GymID: gymID, Limit: limit})
	if err != nil {
		return Events{}, fmt.Errorf("events report: %w", err)
	}
	gyms, err := src.ListGyms(ctx)
	if err != nil {
		return Events{}, fmt.Errorf("events report: %w", err)
	}
	names := make(map[string]string, len(gyms))
	for _, g := range gyms {
		names[g.ID] = g.Name
	}

	r := Events{Events: make([]EventRow, 0, len(events))}
	for _, ev := range events {
		name := names[ev.GymID]
		if name == "" {
			name = ev.GymID
		}
		r.Events = append(r.Events, EventRow{Event: ev, GymName: name, Text: ev.Describe()})
	}
	return r, nil
}

// WriteText renders "[time] gym: sentence" lines.
func (r Events) WriteText(w io.Writer) error {
	if len(r.Events) == 0 {
		_, err := fmt.Fprintln(w, "No events recorded.")
		return err
	}
	for _, ev := range r.Events {
		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", ev.Timestamp.UTC().Format(timeLayout), ev.GymName, ev.Text); err != nil {
			return err
		}
	}
	return nil
}
