package testfixtures

import (
	"sync"
	"time"
)

// Clock drives grid cache expiry and record timestamps in tests. It starts on
// the fixture event day and only moves when told to.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts the clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Outlive moves the clock just past ttl, so anything cached now has expired.
func (c *Clock) Outlive(ttl time.Duration) time.Time {
	return c.Advance(ttl + time.Nanosecond)
}
