package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/steadyboard/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCycle creates a cycle with minimal required fields.
func createTestCycle(seq int64, outcome ir.Outcome) ir.Cycle {
	return ir.Cycle{
		ID:           "cycle-" + string(rune('a'+seq)),
		Seq:          seq,
		Source:       "csv",
		Outcome:      outcome,
		Participants: 2,
	}
}

// createTestState creates a committed state with two ranked participants.
func createTestState(seq int64) ir.CommittedState {
	return ir.CommittedState{
		Seq: seq,
		Standings: []ir.Standing{
			{ParticipantRecord: ir.ParticipantRecord{Identity: "Kim", ToPar: ir.Int(-2), Gross: "70"}, Rank: 1},
			{ParticipantRecord: ir.ParticipantRecord{Identity: "Lee", ToPar: nil, Gross: ""}},
		},
		Event:     ir.EventState{Progress: ir.Int(7), Par: ir.Int(4), Label: "Pebble"},
		Signature: "sig-" + string(rune('a'+seq)),
	}
}

// verifyPragma checks that a pragma reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
