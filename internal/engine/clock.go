package engine

import "sync/atomic"

// Clock is a monotonic logical clock. The worker stamps every PendingRequest
// with Clock.Next(), which gives each request a unique correlation id that
// also orders requests by submission.
//
// Safe for concurrent use: callers on any goroutine allocate ids before
// enqueuing.
type Clock struct {
	seq atomic.Uint64
}

// NewClock creates a clock whose first id is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next id. Every call returns a unique, increasing value.
func (c *Clock) Next() uint64 {
	return c.seq.Add(1)
}

// Current returns the most recently issued id without advancing.
func (c *Clock) Current() uint64 {
	return c.seq.Load()
}
