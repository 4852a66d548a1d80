// Package ir provides the shared record types for steadyboard.
//
// This package contains the snapshot, candidate and committed-state shapes
// plus the error taxonomy and canonical encoding used for signatures. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Scores are int64, never float (a non-integral read parses to null)
//   - Null is represented by a nil pointer, never a sentinel number
//   - All JSON tags use snake_case
//   - Ordering of cycles uses the logical seq, never wall-clock time
package ir
