package engine

import (
	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/score"
)

// MonotonicRules toggles the forward-only checks applied to proposals that
// survived stabilization.
type MonotonicRules struct {
	// Progress vetoes the whole event commit when the progress counter would
	// move backward.
	Progress bool

	// Gross vetoes a participant's commit when a numeric gross would drop.
	Gross bool
}

// enforce removes vetoed transitions from p and returns what was vetoed.
// Only transitions between two numeric values are checked; a missing or
// non-numeric side never triggers a veto.
func (m MonotonicRules) enforce(committed ir.CommittedState, p *proposal) []ir.Veto {
	var vetoes []ir.Veto

	if m.Progress && p.eventChanged {
		from, to := committed.Event.Progress, p.event.Progress
		if from != nil && to != nil && *to < *from {
			vetoes = append(vetoes, ir.Veto{Field: "progress", Committed: *from, Candidate: *to})
			p.event = committed.Event.Clone()
			p.eventChanged = false
		}
	}

	if m.Gross {
		kept := p.changes[:0]
		for _, ch := range p.changes {
			if v, ok := grossRegression(ch); ok {
				vetoes = append(vetoes, v)
				continue
			}
			kept = append(kept, ch)
		}
		p.changes = kept
	}

	return vetoes
}

func grossRegression(ch ir.Change) (ir.Veto, bool) {
	if ch.Kind != ir.ChangeUpdated {
		return ir.Veto{}, false
	}
	from, ok := score.NumericGross(ch.Before.Gross)
	if !ok {
		return ir.Veto{}, false
	}
	to, ok := score.NumericGross(ch.After.Gross)
	if !ok || to >= from {
		return ir.Veto{}, false
	}
	return ir.Veto{Field: "gross", Identity: ch.Identity, Committed: from, Candidate: to}, true
}
