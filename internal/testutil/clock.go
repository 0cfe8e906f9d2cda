// Package testutil provides deterministic test doubles for the engine's
// injected collaborators: the clock, the identity provider, and the
// ticket sink.
package testutil

import (
	"sync"
	"time"
)

// FakeClock is a thread-safe settable clock for tests.
//
// Unlike the system clock it only moves when told to, which makes
// urgency/overdue predicates and scheduler ticks fully deterministic.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at the given instant.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the frozen instant.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to a specific instant.
func (c *FakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
