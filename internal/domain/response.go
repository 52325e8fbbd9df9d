package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Variant says which subset of attending members goes to an event.
type Variant string

const (
	// VariantNone means no attendees for this event.
	VariantNone Variant = "none"
	// VariantAll means every attending member goes.
	VariantAll Variant = "all"
	// VariantOne means exactly one named member goes.
	VariantOne Variant = "one"
	// VariantSome means an explicit non-empty set of members goes.
	VariantSome Variant = "some"
)

// EventSelection is the loose, client-shaped answer for one event. Any field
// may be absent; the validation engine decides which combinations are legal.
// A nil pointer or nil slice means "field not sent".
type EventSelection struct {
	Variant          *Variant
	SingleAttendeeID *string
	AttendeeIDs      []string
}

// PersonReply is the loose per-person answer in a submission.
type PersonReply struct {
	Attending     Attending
	HasAllergies  *bool
	AllergiesText string
}

// Submission is a client's full answer for a group: one entry per event the
// client answered, one entry per person. Unvalidated.
type Submission struct {
	Events map[EventKind]EventSelection
	People map[string]PersonReply
}

// EventReply is the strict form of one event's answer. Construct only via
// ReplyNone, ReplyAll, ReplyOne, or ReplySome; the payload fields cannot
// disagree with the variant.
type EventReply struct {
	variant   Variant
	single    string
	attendees []string
}

// ReplyNone answers that nobody attends.
func ReplyNone() EventReply { return EventReply{variant: VariantNone} }

// ReplyAll answers that every attending member attends.
func ReplyAll() EventReply { return EventReply{variant: VariantAll} }

// ReplyOne answers that only the named member attends.
func ReplyOne(personID string) EventReply {
	return EventReply{variant: VariantOne, single: personID}
}

// ReplySome answers with an explicit attendee set. Blank ids are dropped and
// duplicates collapsed; the result is sorted so replies compare stably.
func ReplySome(personIDs []string) EventReply {
	seen := make(map[string]struct{}, len(personIDs))
	var ids []string
	for _, id := range personIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return EventReply{variant: VariantSome, attendees: ids}
}

// Variant returns the reply's tag.
func (r EventReply) Variant() Variant { return r.variant }

// SingleAttendeeID returns the named attendee for a One reply.
func (r EventReply) SingleAttendeeID() (string, bool) {
	return r.single, r.variant == VariantOne
}

// AttendeeIDs returns the attendee set for a Some reply.
func (r EventReply) AttendeeIDs() ([]string, bool) {
	if r.variant != VariantSome {
		return nil, false
	}
	return r.attendees, true
}

// Includes reports whether the reply selects the given person, assuming the
// person is attending. All selects everyone, None nobody.
func (r EventReply) Includes(personID string) bool {
	switch r.variant {
	case VariantAll:
		return true
	case VariantOne:
		return r.single == personID
	case VariantSome:
		for _, id := range r.attendees {
			if id == personID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// EventResponse is the confirmed aggregate: one strict reply per event kind
// the group is invited to. Kinds the group is not invited to have no entry.
type EventResponse map[EventKind]EventReply

// BuildEventResponse converts a validated submission into the strict
// aggregate. It must only be called after the validation engine reported no
// errors; a selection that cannot be converted returns an error rather than
// a lossy aggregate.
func BuildEventResponse(group GroupDefinition, sub Submission) (EventResponse, error) {
	resp := make(EventResponse, len(group.InvitedTo))
	for _, kind := range group.InvitedTo {
		sel, ok := sub.Events[kind]
		if !ok || sel.Variant == nil {
			return nil, fmt.Errorf("build event response: no variant for %s", kind)
		}
		switch *sel.Variant {
		case VariantNone:
			resp[kind] = ReplyNone()
		case VariantAll:
			resp[kind] = ReplyAll()
		case VariantOne:
			if sel.SingleAttendeeID == nil || strings.TrimSpace(*sel.SingleAttendeeID) == "" {
				return nil, fmt.Errorf("build event response: %s variant one without attendee", kind)
			}
			resp[kind] = ReplyOne(*sel.SingleAttendeeID)
		case VariantSome:
			reply := ReplySome(sel.AttendeeIDs)
			if ids, _ := reply.AttendeeIDs(); len(ids) == 0 {
				return nil, fmt.Errorf("build event response: %s variant some without attendees", kind)
			}
			resp[kind] = reply
		default:
			return nil, fmt.Errorf("build event response: unknown variant %q for %s", *sel.Variant, kind)
		}
	}
	return resp, nil
}
