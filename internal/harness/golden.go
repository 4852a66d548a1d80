package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/steadyboard/internal/ir"
)

// TraceSnapshot is the golden form of a run: every cycle record and the
// final committed state.
type TraceSnapshot struct {
	ScenarioName string
	Cycles       []ir.Cycle
	Final        ir.CommittedState
}

// NewTraceSnapshot captures a result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Cycles:       result.Cycles,
		Final:        result.Final,
	}
}

// MarshalLines renders the snapshot as canonical JSON lines: a header, one
// line per cycle, then the final state. Line-oriented output keeps golden
// diffs readable.
func (s TraceSnapshot) MarshalLines() ([]byte, error) {
	var buf bytes.Buffer
	write := func(v map[string]any) error {
		line, err := ir.MarshalCanonical(v)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
		return nil
	}

	if err := write(map[string]any{"scenario": s.ScenarioName, "cycles": len(s.Cycles)}); err != nil {
		return nil, err
	}
	for _, c := range s.Cycles {
		if err := write(ir.CycleObject(c)); err != nil {
			return nil, fmt.Errorf("cycle %d: %w", c.Seq, err)
		}
	}
	if err := write(map[string]any{"final": ir.StateObject(s.Final)}); err != nil {
		return nil, fmt.Errorf("final state: %w", err)
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario, fails the test on any unmet
// expectation, and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return fmt.Errorf("failed to run scenario: %w", err)
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	trace, err := NewTraceSnapshot(scenarioName, result).MarshalLines()
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, trace)
	return nil
}
