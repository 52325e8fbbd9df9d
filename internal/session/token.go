// Package session implements the stateless access capability: signed,
// expiring bearer tokens and the device identity derived from them.
//
// A token proves only "this bearer was granted access before time X". It
// carries no user identity; the locking layer identifies devices by a
// one-way hash of the token (see DeviceID).
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidToken is returned for every validation failure: bad encoding,
// signature mismatch, malformed payload, or expiry. Callers get a single
// uniform outcome so nothing about the failure mode leaks.
var ErrInvalidToken = errors.New("session: invalid token")

type payload struct {
	Exp int64 `json:"exp"`
}

// Issue creates a token that is valid until expiresAt, signed with key.
// The token is base64url(payload) + "." + base64url(hmac-sha256(payload)).
func Issue(expiresAt time.Time, key string) string {
	data, err := json.Marshal(payload{Exp: expiresAt.Unix()})
	if err != nil {
		// payload is a fixed struct; Marshal cannot fail on it
		panic(err)
	}
	sig := sign(data, key)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(data) + "." + enc.EncodeToString(sig)
}

// Validate checks token against key at time now and returns its expiry.
// The signature is recomputed over the decoded payload and compared in
// constant time before the expiry check.
func Validate(token, key string, now time.Time) (time.Time, error) {
	dot := -1
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return time.Time{}, ErrInvalidToken
	}

	enc := base64.RawURLEncoding
	data, err := enc.DecodeString(token[:dot])
	if err != nil {
		return time.Time{}, ErrInvalidToken
	}
	sig, err := enc.DecodeString(token[dot+1:])
	if err != nil {
		return time.Time{}, ErrInvalidToken
	}

	if !hmac.Equal(sign(data, key), sig) {
		return time.Time{}, ErrInvalidToken
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return time.Time{}, ErrInvalidToken
	}

	expiresAt := time.Unix(p.Exp, 0).UTC()
	if !now.Before(expiresAt) {
		return time.Time{}, ErrInvalidToken
	}
	return expiresAt, nil
}

func sign(data []byte, key string) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(data)
	return mac.Sum(nil)
}
