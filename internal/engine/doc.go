// Package engine implements snapshot reconciliation and the poll loop.
//
// ARCHITECTURE:
//
// Single-Writer Poll Loop:
// One driver goroutine owns the committed state. Reads (and the optional
// confirmation re-read) run in a worker goroutine; their result is handed
// back to the loop, which alone calls Engine.Reconcile. A tick that fires
// while a cycle is in flight is skipped, never queued.
//
// Cycle Pipeline:
// 1. Source.Fetch returns raw header-first tables
// 2. The normalizer turns them into a candidate
// 3. Guard admits or rejects the candidate as a whole
// 4. The stabilizer debounces each participant and event field
// 5. Monotonic rules veto backward transitions
// 6. The ranker orders the survivors; the new state replaces the old
// 7. Every sink re-renders the committed state, changed or not
//
// A failure at any step leaves the committed state untouched.
//
// Logical Clock:
// Every cycle takes the next seq from Clock.Next(). Committed states carry
// the seq of the cycle that produced them. Wall-clock time is only used to
// schedule polls, never to order them.
package engine
