// Package clock abstracts the current time so forecasts can be tested
// against a fixed day.
package clock

import "time"

// Clock supplies the current time. Forecasts compare due dates against it.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock in a fixed location.
type RealClock struct {
	Location *time.Location
}

// NewRealClock returns a clock in loc, or UTC when loc is nil.
func NewRealClock(loc *time.Location) RealClock {
	if loc == nil {
		loc = time.UTC
	}
	return RealClock{Location: loc}
}

// Now returns the current time in the clock's location.
func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FakeClock is a manually advanced clock for tests.
type FakeClock struct {
	now time.Time
}

// NewFakeClock returns a FakeClock stopped at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the frozen time.
func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
