package seqclock

import "sync/atomic"

// Clock issues strictly increasing sequence numbers for a single session.
// Events stamped from the same Clock have a total order regardless of
// delivery timing. Clocks are not shared across sessions.
type Clock struct {
	last atomic.Int64
}

// New creates a Clock starting at seed. The first Next call returns seed+1.
func New(seed int64) *Clock {
	c := &Clock{}
	c.last.Store(seed)
	return c
}

// Next returns the next sequence number. Safe for concurrent use; values
// are distinct and strictly increasing with no gaps relative to the seed.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current returns the last issued value without incrementing.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
