package engine

import (
	"fmt"
	"maps"

	"github.com/roach88/steadyboard/internal/ir"
)

// Guard rejection reasons.
const (
	ReasonMinPopulation = "min_population"
	ReasonNameSet       = "name_set"
	ReasonCoherence     = "coherence"
)

// GuardConfig selects the admission checks.
type GuardConfig struct {
	// MinPopulation is the smallest participant count admitted.
	// Values below 1 are raised to 1: an empty read never replaces a board.
	MinPopulation int

	// NameSetStable requires the candidate's identity set to equal the
	// committed set exactly. Skipped until something has been committed.
	NameSetStable bool

	// RequireCoherence requires a control table whose progress counter
	// equals the candidate's progress counter.
	RequireCoherence bool
}

// Guard decides whether a candidate may enter stabilization.
type Guard struct {
	cfg GuardConfig
}

// NewGuard creates a guard for cfg.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.MinPopulation < 1 {
		cfg.MinPopulation = 1
	}
	return &Guard{cfg: cfg}
}

// Admit returns nil if cand passes every enabled check, otherwise a guard
// rejection carrying the name of the first failed check.
func (g *Guard) Admit(cand ir.Candidate, committed ir.CommittedState) error {
	if n := len(cand.Participants); n < g.cfg.MinPopulation {
		return ir.NewGuardRejection(ReasonMinPopulation,
			fmt.Sprintf("candidate has %d participants, need at least %d", n, g.cfg.MinPopulation))
	}

	if g.cfg.NameSetStable && len(committed.Standings) > 0 {
		if !maps.Equal(cand.Identities(), committed.Identities()) {
			return ir.NewGuardRejection(ReasonNameSet,
				fmt.Sprintf("identity set changed (%d candidate, %d committed)",
					len(cand.Participants), len(committed.Standings)))
		}
	}

	if g.cfg.RequireCoherence {
		if err := coherent(cand); err != nil {
			return err
		}
	}

	return nil
}

func coherent(cand ir.Candidate) error {
	if cand.Control == nil {
		return ir.NewGuardRejection(ReasonCoherence, "control table missing")
	}
	got, want := cand.Control.Progress, cand.Event.Progress
	if got == nil || want == nil {
		return ir.NewGuardRejection(ReasonCoherence, "progress counter missing")
	}
	if *got != *want {
		return ir.NewGuardRejection(ReasonCoherence,
			fmt.Sprintf("control progress %d does not match event progress %d", *got, *want))
	}
	return nil
}

// Confirm compares two reads taken a short delay apart. The later read is
// always the one that goes forward; agreed reports whether their structural
// signatures matched.
func (g *Guard) Confirm(first, second ir.Candidate) (ir.Candidate, bool, error) {
	a, err := ir.CandidateSignature(first)
	if err != nil {
		return ir.Candidate{}, false, err
	}
	b, err := ir.CandidateSignature(second)
	if err != nil {
		return ir.Candidate{}, false, err
	}
	return second, a == b, nil
}
