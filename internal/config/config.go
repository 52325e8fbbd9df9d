// Package config loads rsvpd configuration from a YAML file, applying
// defaults for anything omitted.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunables. Durations are expressed in whole units in the
// file (minutes/seconds) to keep the YAML plain.
type Config struct {
	// DatabasePath is the SQLite file backing all RSVP state.
	DatabasePath string `yaml:"databasePath"`

	// InvitesPath is the YAML invite list.
	InvitesPath string `yaml:"invitesPath"`
	// InvitesCacheSeconds is how long the invite list is cached.
	InvitesCacheSeconds int `yaml:"invitesCacheSeconds"`

	// SessionSigningKey signs session tokens. Required for token commands.
	SessionSigningKey string `yaml:"sessionSigningKey"`
	// SessionTTLMinutes is how long issued tokens stay valid.
	SessionTTLMinutes int `yaml:"sessionTtlMinutes"`

	// LockSeconds is the claim duration.
	LockSeconds int `yaml:"lockSeconds"`
	// AllergiesTextMaxLength bounds per-person allergies free text.
	AllergiesTextMaxLength int `yaml:"allergiesTextMaxLength"`

	Export ExportConfig `yaml:"export"`
}

// ExportConfig tunes the outbox drain loop.
type ExportConfig struct {
	// MaxItems bounds one drain pass.
	MaxItems int `yaml:"maxItems"`
	// MaxAttempts is the per-item poison-pill cap.
	MaxAttempts int `yaml:"maxAttempts"`
	// IntervalSeconds between drain passes.
	IntervalSeconds int `yaml:"intervalSeconds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DatabasePath:           "rsvpd.db",
		InvitesPath:            "invites.yaml",
		InvitesCacheSeconds:    300,
		SessionTTLMinutes:      15,
		LockSeconds:            120,
		AllergiesTextMaxLength: 200,
		Export: ExportConfig{
			MaxItems:        25,
			MaxAttempts:     50,
			IntervalSeconds: 300,
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error so typos
// don't silently fall back to defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LockDuration returns LockSeconds as a duration.
func (c Config) LockDuration() time.Duration {
	return time.Duration(c.LockSeconds) * time.Second
}

// SessionTTL returns SessionTTLMinutes as a duration.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// InvitesCacheTTL returns InvitesCacheSeconds as a duration.
func (c Config) InvitesCacheTTL() time.Duration {
	return time.Duration(c.InvitesCacheSeconds) * time.Second
}

// DrainInterval returns Export.IntervalSeconds as a duration.
func (c Config) DrainInterval() time.Duration {
	return time.Duration(c.Export.IntervalSeconds) * time.Second
}
