package util

import "time"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Clock reports wall-clock time in a fixed location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock builds a clock for the given location; nil means time.Local.
func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{loc: loc, now: time.Now}
}

// FixedClock always reports t, converted to t's own location.
func FixedClock(t time.Time) *Clock {
	return &Clock{loc: t.Location(), now: func() time.Time { return t }}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Hour returns the current local hour (0-23).
func (c *Clock) Hour() int {
	return c.Now().Hour()
}
