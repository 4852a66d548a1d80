// Package harness runs leaderboard scenarios through the real poll loop.
//
// A scenario scripts what the source returns on each poll and states what
// the viewer should (and should not) have seen. The harness drives an
// engine.Driver with a scripted source, an in-memory SQLite journal, a
// recording sink and sequential cycle IDs, so every run is deterministic.
//
// # Scenario Format
//
//	name: flicker_suppressed
//	description: "A one-poll score blip never reaches the board"
//	config:
//	  participant_threshold: 2
//	initial:
//	  standings:
//	    - {identity: Kim, to_par: -2, gross: "70"}
//	  event: {progress: 7, par: 4}
//	polls:
//	  - participants:
//	      - [name, to_par, gross]
//	      - [Kim, "-3", "69"]
//	    expect: {outcome: pending}
//	  - error: transport
//	    expect: {outcome: failed, reason: transport}
//	assertions:
//	  - type: final_standings
//	    standings:
//	      - {identity: Kim, to_par: -2, rank: 1}
//	  - type: rendered_progress
//	    values: [7, 7]
//
// A poll either supplies tables (participants, plus optional event and
// control tables in the same header-first layout the sources produce) or
// an injected error. repeat runs the same poll several times.
//
// # Assertion Types
//
//   - final_standings: the committed standings match in order
//   - final_event: the committed event fields match (unset fields ignored)
//   - outcome_count: exactly count cycles ended with outcome
//   - veto_count: exactly count monotonic vetoes on field
//   - never_rendered: identity never appeared in any rendered state
//   - rendered_progress: the progress shown after each poll, in order
//
// # Golden Traces
//
// RunWithGolden writes one canonical JSON line per cycle plus the final
// committed state and compares it against testdata/golden/<name>.golden.
// Cycle IDs are left out so traces are stable. Regenerate with:
//
//	go test ./internal/harness -update
package harness
