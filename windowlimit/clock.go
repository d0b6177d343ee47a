/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package windowlimit

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc is an adapter to allow the use of ordinary functions as Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// systemClock relies on time.Now that carries a monotonic clock reading,
// so comparisons between its values are not affected by wall clock adjustments.
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock is the default Clock.
var SystemClock Clock = systemClock{}
