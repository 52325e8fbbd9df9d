// Package lock implements the group claim/submit/reset state machine.
//
// A group record moves Open -> Locked -> Confirmed, and back to Open only
// via administrative reset. Locks are exclusive, time-boxed, and scoped to
// one group; a device holds at most one active claim at any time. All
// coordination happens through the versioned record store - the manager
// keeps no in-process mutable state and is safe for concurrent use.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/weddingtools/rsvpd/internal/domain"
	"github.com/weddingtools/rsvpd/internal/store"
)

// Store is the record-store surface the manager needs. *store.Store
// satisfies it; tests substitute failing stubs for the advisory paths.
type Store interface {
	GetOrCreateGroup(ctx context.Context, groupID string) (domain.GroupRecord, error)
	UpdateGroup(ctx context.Context, rec domain.GroupRecord) (domain.GroupRecord, error)
	OverwriteGroup(ctx context.Context, rec domain.GroupRecord) (domain.GroupRecord, error)
	GetClaim(ctx context.Context, deviceID string) (domain.DeviceClaim, error)
	PutClaim(ctx context.Context, claim domain.DeviceClaim) error
	DeleteClaim(ctx context.Context, deviceID, groupID string) error
	UpsertPerson(ctx context.Context, rec domain.PersonRecord) error
	ListPeople(ctx context.Context, groupID string) (map[string]domain.PersonRecord, error)
	DeletePeople(ctx context.Context, groupID string) error
}

// Manager owns the group lock state machine.
type Manager struct {
	store Store
	clock Clock
	log   zerolog.Logger
}

// NewManager creates a manager over the given store.
func NewManager(st Store, clock Clock, log zerolog.Logger) *Manager {
	return &Manager{store: st, clock: clock, log: log}
}

// GetOrCreate returns the group's current record, creating an Open record on
// first access. Idempotent and side-effect-free beyond first creation.
func (m *Manager) GetOrCreate(ctx context.Context, groupID string) (domain.GroupRecord, error) {
	return m.store.GetOrCreateGroup(ctx, groupID)
}

// Responses returns the stored person responses for a group.
func (m *Manager) Responses(ctx context.Context, groupID string) (map[string]domain.PersonRecord, error) {
	return m.store.ListPeople(ctx, groupID)
}

// Claim acquires or extends the exclusive editing lock on a group for the
// device. The returned record tells the caller what happened:
//
//   - Status Confirmed: the group already submitted; no lock was granted.
//   - Status Locked with empty LockHolderID: another device holds an
//     unexpired lock. The holder's identity is never leaked.
//   - Status Locked with LockHolderID == deviceID: the caller holds the
//     lock until LockExpiresAt. Same-device claims extend the expiry.
//
// Before touching the target group, any claim this device holds on a
// different group is released best-effort so the device never holds two
// locks. Failures there are swallowed - it is an optimization, not a
// correctness requirement.
//
// Writes are version-guarded. On a version conflict the manager re-reads
// once and re-runs the same decision exactly once before surfacing the
// conflict; a lost update never happens silently.
func (m *Manager) Claim(ctx context.Context, groupID, deviceID string, lockDuration time.Duration) (domain.GroupRecord, error) {
	m.releasePreviousClaim(ctx, deviceID, groupID)

	rec, err := m.store.GetOrCreateGroup(ctx, groupID)
	if err != nil {
		return domain.GroupRecord{}, err
	}

	const retries = 1
	for attempt := 0; ; attempt++ {
		decided, wrote, err := m.decideClaim(ctx, rec, deviceID, lockDuration)
		if err == nil {
			if wrote {
				claim := domain.DeviceClaim{DeviceID: deviceID, GroupID: groupID, ExpiresAt: decided.LockExpiresAt}
				if err := m.store.PutClaim(ctx, claim); err != nil {
					return domain.GroupRecord{}, fmt.Errorf("record device claim: %w", err)
				}
			}
			return decided, nil
		}
		if !store.IsVersionConflict(err) || attempt >= retries {
			return domain.GroupRecord{}, err
		}

		// Lost the race; re-read and re-decide once.
		rec, err = m.store.GetOrCreateGroup(ctx, groupID)
		if err != nil {
			return domain.GroupRecord{}, err
		}
	}
}

// decideClaim applies the claim decision to one freshly-read record.
// wrote reports whether a lock write happened (acquire or extend).
func (m *Manager) decideClaim(ctx context.Context, rec domain.GroupRecord, deviceID string, lockDuration time.Duration) (out domain.GroupRecord, wrote bool, err error) {
	now := m.clock.Now()

	if rec.Status == domain.StatusConfirmed {
		return suppressHolder(rec), false, nil
	}

	if rec.Status == domain.StatusLocked && !rec.LockExpired(now) && rec.LockHolderID != deviceID {
		// Someone else holds it; never leak their identity.
		return suppressHolder(rec), false, nil
	}

	// Open, expired by anyone, or held by this same device: (re)acquire.
	rec.Status = domain.StatusLocked
	rec.LockHolderID = deviceID
	rec.LockExpiresAt = now.Add(lockDuration)
	updated, err := m.store.UpdateGroup(ctx, rec)
	if err != nil {
		return domain.GroupRecord{}, false, err
	}
	return updated, true, nil
}

// releasePreviousClaim reverts this device's lock on any other group so
// other parties don't wait out a dangling lock. Advisory and non-blocking:
// every failure is logged and ignored.
func (m *Manager) releasePreviousClaim(ctx context.Context, deviceID, newGroupID string) {
	claim, err := m.store.GetClaim(ctx, deviceID)
	if err != nil {
		return
	}
	if claim.GroupID == "" || claim.GroupID == newGroupID {
		return
	}

	rec, err := m.store.GetOrCreateGroup(ctx, claim.GroupID)
	if err != nil {
		m.log.Debug().Err(err).Str("group_id", claim.GroupID).Msg("release previous claim: read failed")
		return
	}
	if rec.Status != domain.StatusLocked || rec.LockHolderID != deviceID {
		return
	}

	// Clearing an already-expired lock is harmless and helps other clients.
	rec.Status = domain.StatusOpen
	rec.LockHolderID = ""
	rec.LockExpiresAt = time.Time{}
	if _, err := m.store.UpdateGroup(ctx, rec); err != nil {
		m.log.Debug().Err(err).Str("group_id", claim.GroupID).Msg("release previous claim: write failed")
	}
}

// Submit finalizes the group's response. The caller must hold an unexpired
// lock under lockSessionID; otherwise a ConflictError is returned and no
// person record is touched.
//
// Person records are written first, then the group record flips to
// Confirmed using the version from the initial read. That last write is the
// single source of truth: it fails closed on a version conflict, and a
// reader that sees Confirmed can trust the person records.
func (m *Manager) Submit(ctx context.Context, groupID, lockSessionID string, resp domain.EventResponse, people []domain.PersonRecord) error {
	rec, err := m.store.GetOrCreateGroup(ctx, groupID)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	if err := m.checkHeld(rec, lockSessionID, now); err != nil {
		return err
	}

	// No cross-record transaction exists; a partial failure here leaves
	// person data ahead of the group's Confirmed flag, which is acceptable
	// because the group write below is what makes the data authoritative.
	for _, p := range people {
		p.GroupID = groupID
		p.UpdatedAt = now
		if err := m.store.UpsertPerson(ctx, p); err != nil {
			return fmt.Errorf("write person response: %w", err)
		}
	}

	rec.Status = domain.StatusConfirmed
	rec.ConfirmedAt = now
	rec.LockHolderID = ""
	rec.LockExpiresAt = time.Time{}
	rec.EventResponse = resp
	if _, err := m.store.UpdateGroup(ctx, rec); err != nil {
		if store.IsVersionConflict(err) {
			// Lost the lock mid-submit; fail closed, never blind-overwrite.
			return &ConflictError{GroupID: groupID, Reason: ReasonLockInvalid}
		}
		return err
	}

	// Free the device to claim elsewhere. Best-effort: the submit is
	// already authoritative.
	if err := m.store.DeleteClaim(ctx, lockSessionID, groupID); err != nil {
		m.log.Warn().Err(err).Str("group_id", groupID).Msg("clear device claim failed")
	}
	return nil
}

// checkHeld verifies the caller's lock session against the record.
// Not-locked, wrong-holder, and expired all collapse into one conflict kind
// with remaining-seconds context where derivable.
func (m *Manager) checkHeld(rec domain.GroupRecord, lockSessionID string, now time.Time) error {
	if rec.Status == domain.StatusConfirmed {
		return &ConflictError{GroupID: rec.GroupID, Reason: ReasonConfirmed}
	}
	if rec.Status != domain.StatusLocked || rec.LockExpired(now) {
		return &ConflictError{GroupID: rec.GroupID, Reason: ReasonLockInvalid}
	}
	if rec.LockHolderID != lockSessionID {
		return &ConflictError{
			GroupID:     rec.GroupID,
			Reason:      ReasonLocked,
			ExpiresAt:   rec.LockExpiresAt,
			SecondsLeft: secondsLeft(rec.LockExpiresAt, now),
		}
	}
	return nil
}

// Reset is the privileged administrative override: it deletes every person
// response for the group and rewrites the record to Open with all lock and
// confirmation fields cleared. Reset always wins - it is not version-guarded.
func (m *Manager) Reset(ctx context.Context, groupID string) error {
	if err := m.store.DeletePeople(ctx, groupID); err != nil {
		return err
	}
	_, err := m.store.OverwriteGroup(ctx, domain.GroupRecord{
		GroupID: groupID,
		Status:  domain.StatusOpen,
	})
	if err != nil {
		return err
	}
	m.log.Info().Str("group_id", groupID).Msg("group reset")
	return nil
}

func suppressHolder(rec domain.GroupRecord) domain.GroupRecord {
	rec.LockHolderID = ""
	return rec
}
