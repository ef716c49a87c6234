package gym

// Team ids as reported by the provider. Uncontested is the neutral sentinel
// and compares like any other team.
const (
	Uncontested  = 0
	TeamMystic   = 1
	TeamValor    = 2
	TeamInstinct = 3
)

var teamNames = []string{"Uncontested", "Mystic", "Valor", "Instinct"}

// TeamName returns the display name for a team id, or "Unknown".
func TeamName(id int) string {
	if id < 0 || id >= len(teamNames) {
		return "Unknown"
	}
	return teamNames[id]
}

// Teams returns every known team id in ascending order.
func Teams() []int {
	ids := make([]int, len(teamNames))
	for i := range teamNames {
		ids[i] = i
	}
	return ids
}

// levelThresholds are the ascending point totals at which a gym gains a level.
var levelThresholds = [...]int{2000, 4000, 8000, 12000, 16000, 20000, 30000, 40000, 50000}

// MaxLevel is the level of a gym at or above the last threshold.
const MaxLevel = len(levelThresholds) + 1

// Level derives a gym level from its points: 1 plus the number of
// thresholds the points have reached.
func Level(points int) int {
	level := 1
	for _, threshold := range levelThresholds {
		if points < threshold {
			break
		}
		level++
	}
	return level
}
