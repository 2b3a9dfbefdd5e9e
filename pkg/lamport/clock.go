package lamport

import "sync/atomic"

// Clock is a process-local Lamport logical clock. The zero value is a clock
// at 0, ready to use. All methods are safe for concurrent use, and no two
// concurrent Tick or Observe calls ever return the same value.
type Clock struct {
	v atomic.Int64
}

// New returns a clock initialized to zero.
func New() *Clock {
	return &Clock{}
}

// Tick records a local event and returns the new clock value.
func (c *Clock) Tick() int64 {
	return c.v.Add(1)
}

// Observe merges a clock value received from a peer, setting the clock to
// max(local, remote)+1, and returns the new value.
func (c *Clock) Observe(remote int64) int64 {
	for {
		cur := c.v.Load()
		next := cur + 1
		if remote >= cur {
			next = remote + 1
		}
		if c.v.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// Read returns the current clock value without recording an event.
func (c *Clock) Read() int64 {
	return c.v.Load()
}
