package harness

import "github.com/roach88/steadyboard/internal/ir"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every poll expectation and assertion held.
	Pass bool `json:"pass"`

	// Cycles are the cycle records in poll order.
	Cycles []ir.Cycle `json:"cycles"`

	// Renders are the states handed to the sink, one per cycle.
	Renders []ir.CommittedState `json:"renders"`

	// Final is the committed state after the last poll.
	Final ir.CommittedState `json:"final"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cycles: []ir.Cycle{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
