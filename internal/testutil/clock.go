package testutil

import (
	"sync"
	"time"
)

// StepClock is an ambient clock that moves forward by step on every read.
//
// It stands in for a wall clock that keeps running while a scenario
// executes: anything that reads it twice sees two different instants, so
// tests can prove a frozen scope shields its readers.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
	reads int
}

// NewStepClock creates a clock whose first read returns start+step.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{start: start, now: start, step: step}
}

// Now advances the clock and returns the new instant.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	c.reads++
	return c.now
}

// Reads returns how many times Now was called.
func (c *StepClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Reset rewinds the clock to its start.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
	c.reads = 0
}
