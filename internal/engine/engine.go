package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/steadyboard/internal/ir"
)

// Defaults for Config.
const (
	DefaultParticipantThreshold = 2
	DefaultEventThreshold       = 1
	DefaultMinPopulation        = 1
)

// Config holds the reconciliation knobs.
type Config struct {
	// ParticipantThreshold is how many consecutive admitted cycles must
	// propose the same participant record before it is committed. Removals
	// use the same threshold.
	ParticipantThreshold int

	// EventThreshold is the same for each event field independently.
	EventThreshold int

	Monotonic MonotonicRules
	Guard     GuardConfig

	// Collation is the BCP 47 tag used to order tied names.
	Collation string
}

// DefaultConfig returns the defaults: participants confirmed over two
// cycles, event fields committed on first sight, both monotonic rules on.
func DefaultConfig() Config {
	return Config{
		ParticipantThreshold: DefaultParticipantThreshold,
		EventThreshold:       DefaultEventThreshold,
		Monotonic:            MonotonicRules{Progress: true, Gross: true},
		Guard:                GuardConfig{MinPopulation: DefaultMinPopulation},
		Collation:            DefaultCollation,
	}
}

// Validate reports configuration values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.ParticipantThreshold < 1 {
		errs = append(errs, fmt.Errorf("participant threshold must be >= 1, got %d", c.ParticipantThreshold))
	}
	if c.EventThreshold < 1 {
		errs = append(errs, fmt.Errorf("event threshold must be >= 1, got %d", c.EventThreshold))
	}
	if c.Guard.MinPopulation < 0 {
		errs = append(errs, fmt.Errorf("min population must be >= 0, got %d", c.Guard.MinPopulation))
	}
	return errors.Join(errs...)
}

// Engine reconciles admitted candidates into the committed state.
//
// Each call to Reconcile is one cycle: guard, stabilize, enforce monotonic
// rules, rank, then replace the committed state atomically or not at all.
//
// Thread-safety model:
//   - Reconcile, Restore: must be called from exactly one goroutine (the
//     driver loop)
//   - State: returns a deep copy, but reads without locking, so call it
//     from the same goroutine
//   - Confirm: safe from any goroutine (stateless)
type Engine struct {
	cfg       Config
	guard     *Guard
	ranker    *Ranker
	stab      *stabilizer
	committed ir.CommittedState
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithState starts the engine from a previously committed state, as when
// resuming from the store.
func WithState(s ir.CommittedState) Option {
	return func(e *Engine) {
		e.committed = s.Clone()
	}
}

// New creates an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	ranker, err := NewRanker(cfg.Collation)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		guard:  NewGuard(cfg.Guard),
		ranker: ranker,
		stab:   newStabilizer(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Reconcile runs one candidate through the cycle pipeline.
//
// A guard rejection is returned as an error alongside a cycle with outcome
// rejected; the committed state and pending maps are left as they were.
// Monotonic vetoes are not errors: they are listed on the cycle and the
// rest of the proposal still commits.
func (e *Engine) Reconcile(seq int64, cand ir.Candidate) (ir.Cycle, error) {
	cycle := ir.Cycle{
		Seq:          seq,
		Source:       cand.Source,
		Participants: len(cand.Participants),
	}

	sig, err := ir.CandidateSignature(cand)
	if err != nil {
		cycle.Outcome = ir.OutcomeFailed
		cycle.Pending = e.stab.pendingCount()
		return cycle, err
	}
	cycle.Signature = sig

	if err := e.guard.Admit(cand, e.committed); err != nil {
		cycle.Outcome = ir.OutcomeRejected
		cycle.Reason = ir.ReasonOf(err)
		cycle.Pending = e.stab.pendingCount()
		return cycle, err
	}

	pThreshold, eThreshold := e.cfg.ParticipantThreshold, e.cfg.EventThreshold
	if e.committed.Empty() {
		// Nothing on screen yet: show the first admitted read immediately.
		pThreshold, eThreshold = 1, 1
	}

	p := e.stab.step(e.committed, cand, pThreshold, eThreshold)
	cycle.Vetoes = e.cfg.Monotonic.enforce(e.committed, &p)
	for _, v := range cycle.Vetoes {
		e.logger.Info("transition vetoed",
			"seq", seq,
			"identity", v.Identity,
			"error", ir.NewMonotonicViolation(v.Field, v.Committed, v.Candidate))
	}

	if p.eventChanged {
		before, after := e.committed.Event.Clone(), p.event.Clone()
		p.changes = append(p.changes, ir.Change{
			Kind:        ir.ChangeEvent,
			EventBefore: &before,
			EventAfter:  &after,
		})
	}
	cycle.Pending = e.stab.pendingCount()

	if len(p.changes) == 0 {
		cycle.Outcome = ir.OutcomeUnchanged
		if cycle.Pending > 0 {
			cycle.Outcome = ir.OutcomePending
		}
		return cycle, nil
	}

	next, err := e.apply(seq, p)
	if err != nil {
		cycle.Outcome = ir.OutcomeFailed
		return cycle, err
	}
	e.committed = next
	cycle.Outcome = ir.OutcomeCommitted
	cycle.Changes = p.changes
	return cycle, nil
}

// apply builds the next committed state from the current one and the
// surviving proposal.
func (e *Engine) apply(seq int64, p proposal) (ir.CommittedState, error) {
	records := e.committed.Records()
	index := make(map[string]int, len(records))
	for i, r := range records {
		index[r.Identity] = i
	}

	removed := make(map[string]bool)
	for _, ch := range p.changes {
		switch ch.Kind {
		case ir.ChangeAdded:
			index[ch.Identity] = len(records)
			records = append(records, ch.After.Clone())
		case ir.ChangeUpdated:
			records[index[ch.Identity]] = ch.After.Clone()
		case ir.ChangeRemoved:
			removed[ch.Identity] = true
		}
	}

	kept := make([]ir.ParticipantRecord, 0, len(records))
	for _, r := range records {
		if !removed[r.Identity] {
			kept = append(kept, r)
		}
	}

	next := ir.CommittedState{
		Seq:       seq,
		Standings: e.ranker.Rank(kept),
		Event:     p.event.Clone(),
	}
	sig, err := ir.StateSignature(next)
	if err != nil {
		return ir.CommittedState{}, fmt.Errorf("failed to sign committed state: %w", err)
	}
	next.Signature = sig
	return next, nil
}

// Confirm applies the double-read check to two reads of the same cycle.
func (e *Engine) Confirm(first, second ir.Candidate) (ir.Candidate, bool, error) {
	return e.guard.Confirm(first, second)
}

// State returns a deep copy of the committed state.
func (e *Engine) State() ir.CommittedState {
	return e.committed.Clone()
}

// Restore replaces the committed state and drops all pending proposals.
func (e *Engine) Restore(s ir.CommittedState) {
	e.committed = s.Clone()
	e.stab.reset()
}

// PendingCount returns how many proposals are waiting for observations.
func (e *Engine) PendingCount() int {
	return e.stab.pendingCount()
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}
