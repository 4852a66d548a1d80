package testutil

import (
	"context"
	"sync"

	"github.com/roach88/steadyboard/internal/ir"
)

// Read is one scripted fetch result.
type Read struct {
	Snapshot ir.RawSnapshot
	Err      error
}

// ScriptedSource replays reads in order, one per Fetch. Once the script
// is exhausted every further Fetch fails with a transport error.
//
// Thread-safety: safe for concurrent use.
type ScriptedSource struct {
	mu    sync.Mutex
	name  string
	reads []Read
	calls int
}

// NewScriptedSource creates a source named name.
func NewScriptedSource(name string, reads ...Read) *ScriptedSource {
	return &ScriptedSource{name: name, reads: reads}
}

// Name implements engine.Source.
func (s *ScriptedSource) Name() string { return s.name }

// Fetch implements engine.Source.
func (s *ScriptedSource) Fetch(ctx context.Context) (ir.RawSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return ir.RawSnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.calls >= len(s.reads) {
		s.calls++
		return ir.RawSnapshot{}, ir.NewTransportError(s.name, "script exhausted", nil)
	}
	r := s.reads[s.calls]
	s.calls++
	if r.Err != nil {
		return ir.RawSnapshot{}, r.Err
	}
	snap := r.Snapshot
	if snap.Source == "" {
		snap.Source = s.name
	}
	return snap, nil
}

// Calls reports how many times Fetch was called.
func (s *ScriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// RecordingSink keeps every rendered state.
type RecordingSink struct {
	mu     sync.Mutex
	states []ir.CommittedState
	err    error
}

// NewRecordingSink creates a sink. A non-nil err is returned from every
// Render after the state is recorded.
func NewRecordingSink(err error) *RecordingSink {
	return &RecordingSink{err: err}
}

// Name implements engine.Sink.
func (s *RecordingSink) Name() string { return "recording" }

// Render implements engine.Sink.
func (s *RecordingSink) Render(_ context.Context, state ir.CommittedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	return s.err
}

// States returns the rendered states in order.
func (s *RecordingSink) States() []ir.CommittedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ir.CommittedState, len(s.states))
	copy(out, s.states)
	return out
}

// Last returns the most recent render.
func (s *RecordingSink) Last() (ir.CommittedState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return ir.CommittedState{}, false
	}
	return s.states[len(s.states)-1], true
}
