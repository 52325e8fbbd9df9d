package lock

import "time"

// Clock abstracts wall time so lock expiry is testable.
//
// The lock duration is the system's only timeout mechanism: a lock that is
// not extended or converted to Confirmed within its duration is implicitly
// expired and may be reclaimed by the next claimant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
