package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/testutil"
)

// journal runs one cycle per read against db.
func journal(t *testing.T, db string, reads ...testutil.Read) {
	t.Helper()
	for _, r := range reads {
		_, _, _ = execute(newOnceCommand(&OnceOptions{
			RootOptions: testRootOptions(t, "text"),
			Source:      testutil.NewScriptedSource("scripted", r),
		}), "--db", db)
	}
}

func TestHistory_Text(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cycles.db")
	journal(t, db, leaderboardRead(), testutil.Read{Err: ir.NewTransportError("scripted", "boom", nil)})

	out, _, err := execute(NewHistoryCommand(testRootOptions(t, "text")), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "cycle 1: committed")
	assert.Contains(t, out, "  added Kim -2 70")
	assert.Contains(t, out, "  event progress - -> 7, par - -> 4, label \"\" -> \"Seoul CC\"")
	assert.Contains(t, out, "cycle 2: failed (transport)")
}

func TestHistory_OutcomeFilterJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cycles.db")
	journal(t, db, leaderboardRead(), testutil.Read{Err: ir.NewTransportError("scripted", "boom", nil)})

	out, _, err := execute(NewHistoryCommand(testRootOptions(t, "json")), "--db", db, "--outcome", "failed")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Count  int        `json:"count"`
			Cycles []ir.Cycle `json:"cycles"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Equal(t, 1, resp.Data.Count)
	assert.Equal(t, int64(2), resp.Data.Cycles[0].Seq)
	assert.Equal(t, "transport", resp.Data.Cycles[0].Reason)
}

func TestHistory_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cycles.db")
	journal(t, db, leaderboardRead())

	out, _, err := execute(NewHistoryCommand(testRootOptions(t, "text")), "--db", db, "--identity", "Nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "No cycles recorded.")
}

func TestHistory_MissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "absent.db")

	_, _, err := execute(NewHistoryCommand(testRootOptions(t, "text")), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "cycle log not found")
}

func TestHistory_InvalidOutcome(t *testing.T) {
	_, _, err := execute(NewHistoryCommand(testRootOptions(t, "text")), "--db", "x.db", "--outcome", "maybe")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid outcome")
}

func TestDescribeChange(t *testing.T) {
	before := ir.ParticipantRecord{Identity: "Kim", ToPar: ir.Int(-1), Gross: "71"}
	after := ir.ParticipantRecord{Identity: "Kim", ToPar: ir.Int(-2), Gross: ""}

	assert.Equal(t, "updated Kim -1 71 -> -2 -",
		describeChange(ir.Change{Kind: ir.ChangeUpdated, Identity: "Kim", Before: &before, After: &after}))
	assert.Equal(t, "removed Kim",
		describeChange(ir.Change{Kind: ir.ChangeRemoved, Identity: "Kim", Before: &before}))
	assert.Equal(t, "progress 7 -> 6", describeVeto(ir.Veto{Field: "progress", Committed: 7, Candidate: 6}))
	assert.Equal(t, "gross Kim 72 -> 70", describeVeto(ir.Veto{Field: "gross", Identity: "Kim", Committed: 72, Candidate: 70}))
}
