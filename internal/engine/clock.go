package engine

import "sync/atomic"

// Clock is the logical clock that numbers reconciliation cycles.
//
// Every cycle, admitted or not, takes the next seq. Committed states carry
// the seq of the cycle that produced them, and the cycle log is ordered by
// seq, never by wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though only the driver loop calls Next in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used with --resume to continue after the last persisted cycle.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
