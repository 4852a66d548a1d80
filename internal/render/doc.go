// Package render turns committed leaderboard state into viewer output.
//
// A Board is the display model: formatted scores, dense ranks, and the
// header (hole number, "PAR n", course label). Sinks receive a deep copy
// of the committed state each cycle and publish a Board:
//
//   - TextSink writes a column-aligned table, accounting for wide
//     (East Asian) characters in names
//   - FileSink atomically replaces a board.json file for browser or
//     streaming overlays
//   - Server serves the latest board over HTTP with gin
//
// Every sink re-renders on every cycle, including unchanged and rejected
// ones, so a restarted viewer always catches up.
package render
