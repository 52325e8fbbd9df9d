// Package store provides SQLite-backed durable storage for RSVP state.
//
// The store holds five record families:
//   - groups: one mutable record per group (status, lock, confirmed response)
//   - person_responses: one record per group member, partitioned by group
//   - device_claims: the single active claim a device may hold
//   - export_outbox: one "latest wins" export work item per group
//   - export_rows: the idempotent export sink table
//
// # Optimistic Concurrency
//
// Mutable records carry an opaque version token (a UUID regenerated on every
// successful write). Conditional writes take the token from a prior read and
// fail with ErrVersionConflict when it is stale - a stale write never
// silently overwrites. There are no cross-record transactions: callers order
// their writes so the group record's status transition is the authoritative
// last step.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single-connection pool: SQLite allows one writer at a time
package store
