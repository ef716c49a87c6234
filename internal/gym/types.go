package gym

import "time"

// Trainer is a participant keyed by display name.
type Trainer struct {
	Name        string    `json:"name"`
	Level       int       `json:"level"`
	Team        int       `json:"team"`
	LastChecked time.Time `json:"last_checked"`
}

// Creature is a unit fielded by a trainer, keyed by its server instance id.
type Creature struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	SpeciesID   int       `json:"species_id"`
	CP          int       `json:"cp"`
	LastChecked time.Time `json:"last_checked"`
}

// Gym is the current-state projection of one landmark.
// Exactly one row exists per ID; it is overwritten on every pass.
type Gym struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Team           int       `json:"team"`
	GuardSpeciesID int       `json:"guard_species_id"`
	Points         int       `json:"points"`
	InBattle       bool      `json:"in_battle"`
	Enabled        bool      `json:"enabled"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	LastModified   time.Time `json:"last_modified"`
	LastChecked    time.Time `json:"last_checked"`
}

// Level is the gym's derived level.
func (g Gym) Level() int {
	return Level(g.Points)
}

// Membership records that a trainer currently garrisons a gym with a creature.
type Membership struct {
	GymID      string    `json:"gym_id"`
	Trainer    string    `json:"trainer"`
	CreatureID string    `json:"creature_id"`
	AddedAt    time.Time `json:"added_at"`
}

// Occupant is one garrison slot as reported by the snapshot provider.
type Occupant struct {
	TrainerName  string `json:"trainer_name"`
	TrainerLevel int    `json:"trainer_level"`
	CreatureID   string `json:"creature_id"`
	SpeciesID    int    `json:"species_id"`
	CP           int    `json:"cp"`
	OwnerName    string `json:"owner_name"`
}

// Observation is one newly observed gym and its occupants.
// Gym.LastChecked is left zero by the provider and stamped by the reconciler.
type Observation struct {
	Gym       Gym        `json:"gym"`
	Occupants []Occupant `json:"occupants"`
}

// TrainerNames returns the occupant trainer names in observation order.
func (o Observation) TrainerNames() []string {
	names := make([]string, 0, len(o.Occupants))
	for _, occ := range o.Occupants {
		names = append(names, occ.TrainerName)
	}
	return names
}
