package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/steadyboard/internal/engine"
	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/normalize"
	"github.com/roach88/steadyboard/internal/store"
	"github.com/roach88/steadyboard/internal/testutil"
)

// sourceName labels cycles produced by scenario polls.
const sourceName = "scenario"

// Run executes a scenario and returns the result.
//
// Each run gets a fresh in-memory store and a clock starting at zero, so
// the first poll is seq 1. Every cycle is journaled; after the last poll
// the journal is read back and must agree with what the driver returned.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cfg := scenario.Config.engineConfig()
	opts := []engine.Option{engine.WithLogger(logger)}
	if scenario.Initial != nil {
		initial, err := scenario.Initial.state(cfg.Collation)
		if err != nil {
			return nil, fmt.Errorf("failed to build initial state: %w", err)
		}
		opts = append(opts, engine.WithState(initial))
	}
	eng, err := engine.New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	src := testutil.NewScriptedSource(sourceName, scriptReads(scenario.Polls)...)
	sink := testutil.NewRecordingSink(nil)
	syn := normalize.DefaultSynonyms().Merge(scenario.Synonyms)

	d := engine.NewDriver(eng, src, normalize.New(syn), engine.DriverConfig{},
		engine.WithSinks(sink),
		engine.WithJournal(st),
		engine.WithCycleIDs(testutil.NewSequentialIDGenerator("")),
		engine.WithDriverLogger(logger),
	)

	result := NewResult()
	for i, poll := range scenario.Polls {
		for rep := range repeats(poll) {
			// Errors are part of the cycle record; the scenario checks the outcome.
			cycle, _ := d.RunOnce(ctx)
			result.Cycles = append(result.Cycles, cycle)
			checkExpect(result, i, rep, poll.Expect, cycle)
		}
	}
	result.Renders = sink.States()
	result.Final = eng.State()

	if err := checkJournal(ctx, st, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// scriptReads expands polls into one scripted read per cycle.
func scriptReads(polls []Poll) []testutil.Read {
	var reads []testutil.Read
	for _, p := range polls {
		read := testutil.Read{Snapshot: ir.RawSnapshot{
			Participants: p.Participants,
			Event:        p.Event,
			Control:      p.Control,
			Signature:    p.Signature,
		}}
		switch p.Error {
		case PollErrorTransport:
			read = testutil.Read{Err: ir.NewTransportError(sourceName, "scripted transport failure", nil)}
		case PollErrorShape:
			read = testutil.Read{Err: ir.NewShapeError(sourceName, "scripted shape failure")}
		}
		for range repeats(p) {
			reads = append(reads, read)
		}
	}
	return reads
}

func repeats(p Poll) int {
	return max(p.Repeat, 1)
}

func checkExpect(result *Result, poll, rep int, want *PollExpect, got ir.Cycle) {
	if want == nil {
		return
	}
	if got.Outcome != want.Outcome {
		result.AddError(fmt.Sprintf("polls[%d] (seq %d, repetition %d): expected outcome %s, got %s (reason %q)",
			poll, got.Seq, rep+1, want.Outcome, got.Outcome, got.Reason))
		return
	}
	if want.Reason != "" && got.Reason != want.Reason {
		result.AddError(fmt.Sprintf("polls[%d] (seq %d, repetition %d): expected reason %q, got %q",
			poll, got.Seq, rep+1, want.Reason, got.Reason))
	}
}

// checkJournal reads the cycle log back and compares it with the run.
func checkJournal(ctx context.Context, st *store.Store, result *Result) error {
	logged, err := st.ReadCycles(ctx, store.CycleFilter{})
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(logged) != len(result.Cycles) {
		result.AddError(fmt.Sprintf("journal: expected %d cycles, found %d", len(result.Cycles), len(logged)))
		return nil
	}
	for i, c := range result.Cycles {
		l := logged[i]
		if l.Seq != c.Seq || l.Outcome != c.Outcome || len(l.Changes) != len(c.Changes) {
			result.AddError(fmt.Sprintf("journal: cycle %d logged as seq %d %s with %d changes, ran as seq %d %s with %d changes",
				i, l.Seq, l.Outcome, len(l.Changes), c.Seq, c.Outcome, len(c.Changes)))
		}
	}

	state, ok, err := st.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load journaled state: %w", err)
	}
	if ok && state.Signature != result.Final.Signature {
		result.AddError(fmt.Sprintf("journal: persisted state seq %d does not match final state seq %d",
			state.Seq, result.Final.Seq))
	}
	return nil
}
