package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// timeLayout matches the report package's event timestamps.
const timeLayout = "2006-01-02 15:04:05"

// EventLog renders pass summaries and the event log as stable text.
func EventLog(scenarioName string, result *Result) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", scenarioName)
	for _, s := range result.Summaries {
		fmt.Fprintf(&b, "pass %s: inserted=%d updated=%d unchanged=%d skipped=%d events=%d\n",
			s.PassID, s.GymsInserted, s.GymsUpdated, s.GymsUnchanged, s.GymsSkipped, s.EventsEmitted)
		for _, f := range s.Failures {
			if f.GymID == "" {
				fmt.Fprintf(&b, "  failure: %s\n", f.Kind)
				continue
			}
			fmt.Fprintf(&b, "  failure: %s %s\n", f.Kind, f.GymID)
		}
	}

	b.WriteString("events:\n")
	for _, ev := range result.Events {
		fmt.Fprintf(&b, "%s #%d [%s] %s %s: %s\n",
			ev.PassID, ev.Seq, ev.Timestamp.UTC().Format(timeLayout), ev.GymID, ev.Kind, ev.Describe())
	}

	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its event log against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already-computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, EventLog(scenarioName, result))
}
