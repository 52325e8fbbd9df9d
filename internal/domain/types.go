package domain

import "time"

// EventKind identifies one of the events a group may be invited to.
type EventKind string

const (
	EventDinner       EventKind = "dinner"
	EventEveningParty EventKind = "evening_party"
)

// EventKinds lists every known event kind in a stable order.
// Validation and projection iterate this, so new kinds only need a new
// constant here plus invite data.
var EventKinds = []EventKind{EventDinner, EventEveningParty}

// Attending is a person's yes/no answer for the whole invitation.
type Attending string

const (
	AttendingYes Attending = "yes"
	AttendingNo  Attending = "no"
)

// GroupStatus is the group record's lifecycle state.
type GroupStatus string

const (
	StatusOpen      GroupStatus = "open"
	StatusLocked    GroupStatus = "locked"
	StatusConfirmed GroupStatus = "confirmed"
)

// PersonDefinition is one invited member of a group.
type PersonDefinition struct {
	PersonID string
	FullName string
}

// GroupDefinition describes an invited group. It is immutable; submissions
// must cover exactly Members and may only answer for events in InvitedTo.
type GroupDefinition struct {
	GroupID   string
	Label     string
	InvitedTo []EventKind
	Members   []PersonDefinition
}

// IsInvited reports whether the group is invited to kind.
func (g GroupDefinition) IsInvited(kind EventKind) bool {
	for _, k := range g.InvitedTo {
		if k == kind {
			return true
		}
	}
	return false
}

// GroupRecord is the mutable per-group state held in the record store.
//
// Field presence follows Status: LockHolderID and LockExpiresAt are set only
// while Locked, ConfirmedAt and EventResponse only once Confirmed. The zero
// time / empty string stand in for absence.
//
// VersionToken is opaque and store-supplied; every conditional write must
// present the token from a prior read, and a stale token fails the write.
type GroupRecord struct {
	GroupID       string
	Status        GroupStatus
	LockHolderID  string
	LockExpiresAt time.Time
	ConfirmedAt   time.Time
	EventResponse EventResponse
	VersionToken  string
}

// LockExpired reports whether the record is Locked with an expiry at or
// before now. Open and Confirmed records are never expired.
func (r GroupRecord) LockExpired(now time.Time) bool {
	return r.Status == StatusLocked && !r.LockExpiresAt.IsZero() && !r.LockExpiresAt.After(now)
}

// PersonRecord is the persisted per-member response, keyed by
// (GroupID, PersonID). HasAllergies and AllergiesText are meaningful only
// when Attending is yes.
type PersonRecord struct {
	GroupID       string
	PersonID      string
	FullName      string
	Attending     Attending
	HasAllergies  bool
	AllergiesText string
	UpdatedAt     time.Time
}

// DeviceClaim records the single group a device currently holds a lock on.
type DeviceClaim struct {
	DeviceID  string
	GroupID   string
	ExpiresAt time.Time
}
