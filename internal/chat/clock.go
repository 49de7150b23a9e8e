package chat

import (
	"sync"
	"time"
)

// Clock issues monotonically non-decreasing millisecond timestamps.
// Wall-clock time can step backwards (NTP adjustments); message order
// must not, so the clock clamps to the last issued value.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() int64
}

// NewClock creates a clock backed by the system wall clock.
func NewClock() *Clock {
	return &Clock{now: func() int64 { return time.Now().UnixMilli() }}
}

// NewClockFunc creates a clock backed by the given source, for tests.
func NewClockFunc(now func() int64) *Clock {
	return &Clock{now: now}
}

// Now returns the next timestamp, never smaller than any previously
// returned value.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now()
	if ts < c.last {
		ts = c.last
	}
	c.last = ts
	return ts
}
