package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time for deterministic clocks.
var Epoch = time.Date(2016, time.August, 1, 12, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe clock for tests that advances by a
// fixed step on every read.
//
// The first call to Now() returns the start time. Reset rewinds the clock so
// the same scenario can run twice with identical timestamps.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	reads int64
}

// NewDeterministicClock creates a clock starting at Epoch that advances one
// second per read.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(Epoch, time.Second)
}

// NewDeterministicClockAt creates a clock with an explicit start and step.
// A zero step yields a frozen clock.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start.UTC(), step: step}
}

// Now returns the current time and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.reads) * c.step)
	c.reads++
	return t
}

// Peek returns the time the next Now() call will return.
func (c *DeterministicClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.reads) * c.step)
}

// Set moves the clock so that the next Now() returns t.
func (c *DeterministicClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = t.UTC()
	c.reads = 0
}

// Reset rewinds the clock to its start time.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = 0
}
