// Package snapshot decodes and validates gym detail records from the
// snapshot provider and turns them into observations.
//
// Records are validated against an embedded CUE schema before decoding, so a
// record with no state block or a mistyped field is rejected as a whole with
// a MalformedError instead of being half-read.
package snapshot

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/gymlog/internal/gym"
)

//go:embed schema.cue
var schemaCUE string

// MalformedError reports a record that cannot be turned into an observation.
type MalformedError struct {
	Index  int    // position in the batch, -1 when unknown
	GymID  string // best-effort; empty when the record has no id
	Reason string
}

func (e *MalformedError) Error() string {
	if e.GymID != "" {
		return fmt.Sprintf("malformed record %d (gym %s): %s", e.Index, e.GymID, e.Reason)
	}
	return fmt.Sprintf("malformed record %d: %s", e.Index, e.Reason)
}

// Parser validates and decodes records.
//
// A Parser holds a CUE context and is not safe for concurrent use.
type Parser struct {
	ctx    *cue.Context
	record cue.Value
}

// NewParser compiles the embedded record schema.
func NewParser() (*Parser, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}

	record := schema.LookupPath(cue.ParsePath("#Record"))
	if err := record.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Record: %w", err)
	}

	return &Parser{ctx: ctx, record: record}, nil
}

// Parse validates one raw JSON record and decodes it into an observation.
// index is the record's position in its batch and is only used in errors.
func (p *Parser) Parse(index int, raw []byte) (gym.Observation, error) {
	malformed := func(reason string) error {
		return &MalformedError{Index: index, GymID: peekGymID(raw), Reason: reason}
	}

	v := p.ctx.CompileBytes(raw, cue.Filename(fmt.Sprintf("record-%d.json", index)))
	if err := v.Err(); err != nil {
		return gym.Observation{}, malformed(fmt.Sprintf("invalid json: %v", err))
	}

	if err := p.record.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return gym.Observation{}, malformed(err.Error())
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return gym.Observation{}, malformed(fmt.Sprintf("decode: %v", err))
	}

	return rec.observation(), nil
}

// record mirrors the provider's gym detail payload.
type record struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	GymState    struct {
		FortData struct {
			ID             string  `json:"id"`
			OwnedByTeam    int     `json:"owned_by_team"`
			GuardPokemonID int     `json:"guard_pokemon_id"`
			GymPoints      int     `json:"gym_points"`
			IsInBattle     bool    `json:"is_in_battle"`
			Enabled        bool    `json:"enabled"`
			Latitude       float64 `json:"latitude"`
			Longitude      float64 `json:"longitude"`
			LastModifiedMS int64   `json:"last_modified_timestamp_ms"`
		} `json:"fort_data"`
		Memberships []struct {
			PokemonData struct {
				ID        flexID `json:"id"`
				PokemonID int    `json:"pokemon_id"`
				CP        int    `json:"cp"`
				OwnerName string `json:"owner_name"`
			} `json:"pokemon_data"`
			TrainerPublicProfile struct {
				Name  string `json:"name"`
				Level int    `json:"level"`
			} `json:"trainer_public_profile"`
		} `json:"memberships"`
	} `json:"gym_state"`
}

func (r record) observation() gym.Observation {
	fd := r.GymState.FortData
	obs := gym.Observation{
		Gym: gym.Gym{
			ID:             fd.ID,
			Name:           r.Name,
			Description:    r.Description,
			Team:           fd.OwnedByTeam,
			GuardSpeciesID: fd.GuardPokemonID,
			Points:         fd.GymPoints,
			InBattle:       fd.IsInBattle,
			Enabled:        fd.Enabled,
			Latitude:       fd.Latitude,
			Longitude:      fd.Longitude,
			LastModified:   time.UnixMilli(fd.LastModifiedMS).UTC(),
		},
		Occupants: make([]gym.Occupant, 0, len(r.GymState.Memberships)),
	}

	for _, m := range r.GymState.Memberships {
		obs.Occupants = append(obs.Occupants, gym.Occupant{
			TrainerName:  gym.NormalizeName(m.TrainerPublicProfile.Name),
			TrainerLevel: m.TrainerPublicProfile.Level,
			CreatureID:   string(m.PokemonData.ID),
			SpeciesID:    m.PokemonData.PokemonID,
			CP:           m.PokemonData.CP,
			OwnerName:    gym.NormalizeName(m.PokemonData.OwnerName),
		})
	}
	return obs
}

// flexID accepts an id sent either as a JSON string or as a bare integer.
// Integers are kept as their decimal text so 64-bit ids survive intact.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or integer: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// peekGymID extracts the fort id from a record without validating it.
func peekGymID(raw []byte) string {
	var peek struct {
		GymState struct {
			FortData struct {
				ID string `json:"id"`
			} `json:"fort_data"`
		} `json:"gym_state"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return ""
	}
	return peek.GymState.FortData.ID
}
