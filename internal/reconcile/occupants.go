package reconcile

import "github.com/roach88/gymlog/internal/gym"

type droppedOccupant struct {
	occupant gym.Occupant
	reason   string
}

// sanitizeOccupants drops occupants that cannot form a valid membership:
// a missing trainer name, a missing creature id, or a trainer already
// garrisoning the gym earlier in the list.
func sanitizeOccupants(in []gym.Occupant) ([]gym.Occupant, []droppedOccupant) {
	kept := make([]gym.Occupant, 0, len(in))
	var dropped []droppedOccupant
	seen := make(map[string]bool, len(in))

	for _, occ := range in {
		switch {
		case occ.TrainerName == "":
			dropped = append(dropped, droppedOccupant{occ, "missing trainer name"})
		case occ.CreatureID == "":
			dropped = append(dropped, droppedOccupant{occ, "missing creature id"})
		case seen[occ.TrainerName]:
			dropped = append(dropped, droppedOccupant{occ, "trainer already in gym"})
		default:
			seen[occ.TrainerName] = true
			kept = append(kept, occ)
		}
	}
	return kept, dropped
}

// batchSet deduplicates entities by natural key, keeping first-seen order and
// the last-seen value.
type batchSet[T any] struct {
	order []string
	items map[string]T
}

func newBatchSet[T any]() *batchSet[T] {
	return &batchSet[T]{items: map[string]T{}}
}

func (s *batchSet[T]) put(key string, v T) {
	if _, ok := s.items[key]; !ok {
		s.order = append(s.order, key)
	}
	s.items[key] = v
}

func (s *batchSet[T]) values() []T {
	out := make([]T, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}
