package eventlog

import "time"

// Clock supplies record timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always returns t. Used for reproducible output.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
