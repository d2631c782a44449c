package core

import (
	"sync"
	"time"
)

// Clock provides the current time and can be swapped for a frozen clock in
// tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using real system time.
type SystemClock struct{}

// Now returns the current system time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FrozenClock implements Clock with a controllable time for testing.
type FrozenClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFrozenClock creates a FrozenClock pinned to the given time.
func NewFrozenClock(t time.Time) *FrozenClock {
	return &FrozenClock{now: t}
}

// Now returns the frozen time.
func (c *FrozenClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set pins the clock to a new time.
func (c *FrozenClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *FrozenClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
