package engine

import (
	"slices"

	"github.com/roach88/steadyboard/internal/ir"
)

// tracker debounces proposed values per key.
//
// A proposal that differs from the committed value becomes pending with one
// observation. Each further cycle proposing the same value counts again; a
// different value restarts the count at one; a proposal equal to the
// committed value drops the pending entry. At the threshold the value is
// released for commit and the entry is cleared.
type tracker[T any] struct {
	pending map[string]*ir.Pending[T]
	equal   func(a, b T) bool
}

func newTracker[T any](equal func(a, b T) bool) *tracker[T] {
	return &tracker[T]{
		pending: make(map[string]*ir.Pending[T]),
		equal:   equal,
	}
}

// observe records one proposal for key and reports whether it reached
// threshold in this cycle.
func (t *tracker[T]) observe(key string, committed, candidate T, threshold int) bool {
	if t.equal(candidate, committed) {
		delete(t.pending, key)
		return false
	}

	p, ok := t.pending[key]
	if ok && t.equal(p.Value, candidate) {
		p.Observations++
	} else {
		p = &ir.Pending[T]{Value: candidate, Observations: 1}
		t.pending[key] = p
	}

	if p.Observations >= threshold {
		delete(t.pending, key)
		return true
	}
	return false
}

// clear drops any pending proposal for key.
func (t *tracker[T]) clear(key string) {
	delete(t.pending, key)
}

func (t *tracker[T]) keys() []string {
	keys := make([]string, 0, len(t.pending))
	for k := range t.pending {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (t *tracker[T]) reset() {
	clear(t.pending)
}

// slot is a participant's presence on the board. A committed identity that
// disappears from an admitted candidate is proposed as an absent slot, so
// removals debounce the same way as score changes.
type slot struct {
	present bool
	record  ir.ParticipantRecord
}

func (s slot) equal(o slot) bool {
	if s.present != o.present {
		return false
	}
	return !s.present || s.record.Equal(o.record)
}

const (
	keyProgress = "progress"
	keyPar      = "par"
	keyLabel    = "label"
)

// proposal is what stabilization released for commit in one cycle, before
// the monotonic rules have had their say.
type proposal struct {
	changes      []ir.Change
	event        ir.EventState
	eventChanged bool
}

// stabilizer holds the pending maps for participants and event fields.
// It is owned by the engine and touched only from the engine's caller.
type stabilizer struct {
	records *tracker[slot]
	ints    *tracker[*int64]
	labels  *tracker[string]
}

func newStabilizer() *stabilizer {
	return &stabilizer{
		records: newTracker(slot.equal),
		ints:    newTracker(ir.EqualInt),
		labels:  newTracker(func(a, b string) bool { return a == b }),
	}
}

// pendingCount is the number of proposals still waiting for observations.
func (s *stabilizer) pendingCount() int {
	return len(s.records.pending) + len(s.ints.pending) + len(s.labels.pending)
}

func (s *stabilizer) reset() {
	s.records.reset()
	s.ints.reset()
	s.labels.reset()
}

// step runs one admitted candidate through the debounce state machine.
//
// Participants are visited in candidate order, then committed identities
// absent from the candidate, then stale pending keys, so the change list is
// deterministic for a given input.
func (s *stabilizer) step(committed ir.CommittedState, cand ir.Candidate, pThreshold, eThreshold int) proposal {
	var p proposal

	visited := make(map[string]bool, len(cand.Participants)+len(committed.Standings))
	visit := func(identity string, proposed slot) {
		visited[identity] = true
		before, had := committed.Lookup(identity)
		current := slot{present: had, record: before}
		if !s.records.observe(identity, current, proposed, pThreshold) {
			return
		}
		p.changes = append(p.changes, participantChange(identity, current, proposed))
	}

	for _, rec := range cand.Participants {
		visit(rec.Identity, slot{present: true, record: rec.Clone()})
	}
	for _, identity := range committed.Names() {
		if !visited[identity] {
			visit(identity, slot{})
		}
	}
	for _, identity := range s.records.keys() {
		if !visited[identity] {
			s.records.clear(identity)
		}
	}

	p.event = committed.Event.Clone()
	if v := cand.Event.Progress; v == nil {
		s.ints.clear(keyProgress)
	} else if s.ints.observe(keyProgress, committed.Event.Progress, v, eThreshold) {
		p.event.Progress = ir.Int(*v)
		p.eventChanged = true
	}
	if v := cand.Event.Par; v == nil {
		s.ints.clear(keyPar)
	} else if s.ints.observe(keyPar, committed.Event.Par, v, eThreshold) {
		p.event.Par = ir.Int(*v)
		p.eventChanged = true
	}
	if v := cand.Event.Label; v == "" {
		s.labels.clear(keyLabel)
	} else if s.labels.observe(keyLabel, committed.Event.Label, v, eThreshold) {
		p.event.Label = v
		p.eventChanged = true
	}

	return p
}

func participantChange(identity string, before, after slot) ir.Change {
	ch := ir.Change{Identity: identity}
	if before.present {
		rec := before.record.Clone()
		ch.Before = &rec
	}
	if after.present {
		rec := after.record.Clone()
		ch.After = &rec
	}
	switch {
	case !before.present:
		ch.Kind = ir.ChangeAdded
	case !after.present:
		ch.Kind = ir.ChangeRemoved
	default:
		ch.Kind = ir.ChangeUpdated
	}
	return ch
}
