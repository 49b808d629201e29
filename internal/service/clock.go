package service

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing UTC timestamps at microsecond
// precision, the resolution the stores persist.
type Clock struct {
	Now func() time.Time

	mu   sync.Mutex
	last time.Time
}

var defaultClock = NewClock(nil)

func NewClock(now func() time.Time) *Clock {
	return &Clock{Now: now}
}

func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Now
	if now == nil {
		now = time.Now
	}
	t := now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
