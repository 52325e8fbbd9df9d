package session

import (
	"crypto/sha256"
	"encoding/hex"
)

// DeviceID derives the stable device identifier from a validated raw token.
//
// The raw token is never persisted or exposed; all locking logic sees only
// this SHA-256 digest. The id is deterministic for the same token and
// effectively non-invertible, and remains stable exactly as long as the
// client retains its session token.
//
// Callers must Validate the token first; DeviceID itself does not check it.
func DeviceID(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
