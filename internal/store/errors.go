package store

import "errors"

// ErrVersionConflict is returned by conditional writes when the supplied
// version token is stale. The record was changed by another writer since the
// caller's read; the caller must re-read before retrying.
var ErrVersionConflict = errors.New("store: version conflict")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// IsVersionConflict reports whether err is (or wraps) a version conflict.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
