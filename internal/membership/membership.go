// Package membership computes occupant deltas between two passes over a gym.
package membership

import "sort"

// Delta is the set difference between an old and a new occupant set.
// Joined and Left are disjoint and sorted.
type Delta struct {
	Joined []string
	Left   []string
}

// Empty reports whether the occupant sets were equal.
func (d Delta) Empty() bool {
	return len(d.Joined) == 0 && len(d.Left) == 0
}

// Reconcile returns joined = new - old and left = old - new using set
// semantics. Duplicates and input order have no effect on the result.
func Reconcile(old, new []string) Delta {
	oldSet := toSet(old)
	newSet := toSet(new)

	return Delta{
		Joined: difference(newSet, oldSet),
		Left:   difference(oldSet, newSet),
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// difference returns the sorted members of a that are absent from b.
func difference(a, b map[string]struct{}) []string {
	out := []string{}
	for n := range a {
		if _, ok := b[n]; !ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
