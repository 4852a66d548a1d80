package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/steadyboard/internal/ir"
)

func TestRecordCycle_CommittedWritesState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	state := createTestState(1)
	after := state.Standings[0].ParticipantRecord
	cycle := createTestCycle(1, ir.OutcomeCommitted)
	cycle.Changes = []ir.Change{{Kind: ir.ChangeAdded, Identity: "Kim", After: &after}}

	require.NoError(t, s.RecordCycle(ctx, cycle, state))

	got, ok, err := s.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(state, got); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordCycle_NonCommittedKeepsState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordCycle(ctx, createTestCycle(1, ir.OutcomeCommitted), createTestState(1)))

	for seq, outcome := range map[int64]ir.Outcome{
		2: ir.OutcomeRejected,
		3: ir.OutcomeFailed,
		4: ir.OutcomePending,
	} {
		// The state argument is ignored for non-committed cycles.
		require.NoError(t, s.RecordCycle(ctx, createTestCycle(seq, outcome), ir.CommittedState{Seq: seq}))
	}

	got, ok, err := s.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, []string{"Kim", "Lee"}, got.Names())
}

func TestRecordCycle_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	after := ir.ParticipantRecord{Identity: "Kim", ToPar: ir.Int(-1)}
	cycle := createTestCycle(1, ir.OutcomeCommitted)
	cycle.Changes = []ir.Change{{Kind: ir.ChangeAdded, Identity: "Kim", After: &after}}

	require.NoError(t, s.RecordCycle(ctx, cycle, createTestState(1)))
	require.NoError(t, s.RecordCycle(ctx, cycle, createTestState(1)))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM cycles").Scan(&count))
	assert.Equal(t, 1, count)
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM changes").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRecordCycle_CanonicalPayloads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	cycle := createTestCycle(1, ir.OutcomeUnchanged)
	cycle.Vetoes = []ir.Veto{{Field: "progress", Committed: 5, Candidate: 4}}
	require.NoError(t, s.RecordCycle(ctx, cycle, ir.CommittedState{}))

	var vetoes string
	require.NoError(t, s.db.QueryRow("SELECT vetoes FROM cycles WHERE seq = 1").Scan(&vetoes))
	assert.Equal(t, `[{"candidate":4,"committed":5,"field":"progress","identity":""}]`, vetoes)
}
