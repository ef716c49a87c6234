package harness

import (
	"github.com/roach88/gymlog/internal/gym"
	"github.com/roach88/gymlog/internal/reconcile"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every pass expectation and assertion held.
	Pass bool `json:"pass"`

	// Summaries holds one summary per pass, in order.
	Summaries []reconcile.Summary `json:"summaries"`

	// Events is the full event log after the last pass, in insertion order.
	Events []gym.Event `json:"events"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Summaries: []reconcile.Summary{},
		Events:    []gym.Event{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
