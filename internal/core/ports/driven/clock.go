package driven

import "time"

// Clock abstracts time for components with time-driven behaviour, keeping
// the folder watcher's stability and backoff logic testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
