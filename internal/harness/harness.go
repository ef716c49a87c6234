package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/gymlog/internal/reconcile"
	"github.com/roach88/gymlog/internal/store"
	"github.com/roach88/gymlog/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. A returned error means
// the scenario could not be executed at all; failed expectations and
// assertions are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	rec, err := reconcile.New(st,
		reconcile.WithClock(testutil.NewDeterministicClock()),
		reconcile.WithPassIDs(testutil.NewSequentialPassIDs("")),
		reconcile.WithLogger(slog.New(slog.DiscardHandler)),
		reconcile.WithHeartbeat(scenario.heartbeat()),
		reconcile.WithPolicy(scenario.policy()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciler: %w", err)
	}

	result := NewResult()
	for i, p := range scenario.Passes {
		records, err := scenario.rawRecords(p)
		if err != nil {
			return nil, fmt.Errorf("passes[%d]: %w", i, err)
		}

		summary, err := rec.ReconcileBatch(ctx, records)
		if err != nil {
			return nil, fmt.Errorf("passes[%d]: %w", i, err)
		}
		result.Summaries = append(result.Summaries, summary)

		for _, msg := range checkSummary(p.Expect, summary) {
			result.AddError(fmt.Sprintf("passes[%d]: %s", i, msg))
		}
	}

	events, err := st.ReadEvents(ctx, store.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	result.Events = events

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// checkSummary compares the set fields of want against got.
func checkSummary(want *SummaryExpect, got reconcile.Summary) []string {
	if want == nil {
		return nil
	}

	checks := []struct {
		name   string
		want   *int
		actual int
	}{
		{"inserted", want.Inserted, got.GymsInserted},
		{"updated", want.Updated, got.GymsUpdated},
		{"unchanged", want.Unchanged, got.GymsUnchanged},
		{"skipped", want.Skipped, got.GymsSkipped},
		{"events", want.Events, got.EventsEmitted},
		{"dropped", want.Dropped, got.MembershipsDropped},
	}

	var errs []string
	for _, c := range checks {
		if c.want != nil && *c.want != c.actual {
			errs = append(errs, fmt.Sprintf("expected %s=%d, got %d", c.name, *c.want, c.actual))
		}
	}
	return errs
}
