// Package clock abstracts wall-clock time so session staleness, order
// timestamps and the watcher can be driven deterministically in tests.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System is the process wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }
