package engine

import "sync/atomic"

// Clock is a monotonic logical clock for event ordering.
//
// Every emitted Event is stamped with a strictly increasing seq. The Runner
// and the Manager share one goroutine, but the clock is atomic so presenters
// on other goroutines can read Current safely.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
