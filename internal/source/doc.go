// Package source implements the snapshot adapters.
//
// Three shapes are supported:
//   - csv: published CSV pull, one URL per table, with a cache-busting
//     query parameter and no-store headers
//   - sheets: Google Sheets API v4, one values:batchGet per poll after
//     resolving sheet titles from numeric gids
//   - json: a single endpoint returning the whole snapshot
//
// Every adapter retries transport failures with jittered exponential
// backoff and fails fast with a shape error when a read is partial or
// ambiguous. Tables inside one poll are fetched concurrently.
package source
