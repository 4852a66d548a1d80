package normalize

import (
	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/score"
)

// tally counts distinct values in first-seen order.
type tally[K comparable] struct {
	order  []K
	counts map[K]int
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{counts: make(map[K]int)}
}

func (t *tally[K]) add(k K) {
	if _, ok := t.counts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.counts[k]++
}

// winner returns the most frequent value. prefer breaks ties: it reports
// whether candidate should replace the current best. A nil prefer keeps
// the first-seen value.
func (t *tally[K]) winner(prefer func(candidate, best K) bool) (K, bool) {
	var best K
	if len(t.order) == 0 {
		return best, false
	}
	best = t.order[0]
	for _, k := range t.order[1:] {
		switch {
		case t.counts[k] > t.counts[best]:
			best = k
		case t.counts[k] == t.counts[best] && prefer != nil && prefer(k, best):
			best = k
		}
	}
	return best, true
}

// majorityEvent derives the event state from a merged participant table.
//
// Each field takes its most frequent non-empty value. Progress ties break
// toward the larger value since progress only moves forward; par and label
// ties keep the first value seen.
func majorityEvent(cols columns, rows [][]string) ir.EventState {
	progress := newTally[int64]()
	par := newTally[int64]()
	label := newTally[string]()

	for _, row := range rows {
		if p := score.ParseInteger(cols.cell(row, FieldProgress)); p != nil {
			progress.add(*p)
		}
		if p := score.ParseInteger(cols.cell(row, FieldPar)); p != nil {
			par.add(*p)
		}
		if l := cols.cell(row, FieldLabel); l != "" {
			label.add(l)
		}
	}

	var ev ir.EventState
	if v, ok := progress.winner(func(c, b int64) bool { return c > b }); ok {
		ev.Progress = ir.Int(v)
	}
	if v, ok := par.winner(nil); ok {
		ev.Par = ir.Int(v)
	}
	if v, ok := label.winner(nil); ok {
		ev.Label = v
	}
	return ev
}
