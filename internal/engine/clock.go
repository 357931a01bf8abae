package engine

import "time"

// Clock supplies the processor's wall time (last-attempt stamps, last-sync
// time). Injected so tests and the scenario harness get deterministic
// timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

// FixedClock is a deterministic clock that advances by a fixed step each
// time it is read. Step zero freezes it entirely.
type FixedClock struct {
	now  time.Time
	step time.Duration
}

// NewFixedClock creates a clock starting at t, advancing by step per read.
func NewFixedClock(t time.Time, step time.Duration) *FixedClock {
	return &FixedClock{now: t, step: step}
}

// Now returns the current instant and advances the clock.
func (c *FixedClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
