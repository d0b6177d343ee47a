/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"sync"
	"time"
)

// FakeClock is a manually driven clock. It is safe for concurrent use.
// Sleep does not block, it advances the clock instead.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a new FakeClock that starts at the given time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
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

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Sleep advances the clock by d and returns immediately.
func (c *FakeClock) Sleep(d time.Duration) {
	c.Advance(d)
}
