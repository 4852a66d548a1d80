// Package store is the SQLite cycle log behind `steadyboard history` and
// restart resume.
//
// Three tables:
//   - cycles: one row per poll cycle, including rejected and failed ones
//   - changes: the participant and event transitions a cycle committed
//   - committed_state: a single row holding the latest committed board
//
// Cycles are ordered by seq, the engine's cycle clock, never by wall time.
// Recording a seq that is already present does nothing, and the
// committed_state row only moves when a cycle commits. Change details,
// vetoes and the board are stored as canonical JSON (see internal/ir), so
// the same board always stores as the same bytes.
package store
