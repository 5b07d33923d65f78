// Package system provides the wall clock used for audit timestamps.
package system

import "time"

// Clock implements audit.Clock. Times are UTC and truncated to the
// microsecond precision of a Postgres timestamptz, so a value read back from
// the status store compares equal to the one written.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time at microsecond precision.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
