package lock

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Conflict reasons carried by ConflictError.
const (
	// ReasonConfirmed: the group has already submitted a final response.
	ReasonConfirmed = "confirmed"
	// ReasonLocked: another device holds an unexpired lock.
	ReasonLocked = "locked"
	// ReasonLockInvalid: the caller's lock session is missing, mismatched,
	// or expired; the caller must re-claim.
	ReasonLockInvalid = "lock_invalid"
)

// ConflictError reports that an operation lost to the group's current state.
// It carries enough context (expiry, seconds remaining) for a client to
// present a retry countdown.
type ConflictError struct {
	GroupID     string
	Reason      string
	ExpiresAt   time.Time
	SecondsLeft int
}

func (e *ConflictError) Error() string {
	if e.SecondsLeft > 0 {
		return fmt.Sprintf("group %s: %s (%ds left)", e.GroupID, e.Reason, e.SecondsLeft)
	}
	return fmt.Sprintf("group %s: %s", e.GroupID, e.Reason)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// AsConflict unwraps a ConflictError from err.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// secondsLeft rounds the remaining lock time up to whole seconds, clamped
// at zero, matching the countdown clients display.
func secondsLeft(expiresAt, now time.Time) int {
	if expiresAt.IsZero() {
		return 0
	}
	delta := expiresAt.Sub(now)
	if delta <= 0 {
		return 0
	}
	return int(math.Ceil(delta.Seconds()))
}
