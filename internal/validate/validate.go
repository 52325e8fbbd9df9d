// Package validate checks a group submission against its invite definition.
//
// Checking is exhaustive, not fail-fast: every violated rule is reported in
// one pass so a client can fix all inputs at once. Errors carry a stable
// machine-readable code and the offending field path.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/weddingtools/rsvpd/internal/domain"
)

// Error is a single violated rule.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes reported by Submission.
const (
	CodeMissingPersonResponse       = "missing_person_response"
	CodeUnknownPersonResponse       = "unknown_person_response"
	CodeAllergiesNotAllowed         = "allergies_not_allowed_when_not_attending"
	CodeAllergiesTextNotAllowed     = "allergies_text_not_allowed_when_not_attending"
	CodeMissingHasAllergies         = "missing_has_allergies"
	CodeMissingAllergiesText        = "missing_allergies_text"
	CodeAllergiesTextTooLong        = "allergies_text_too_long"
	CodeAllergiesTextWithoutAllergy = "allergies_text_not_allowed_when_no_allergies"
	CodeEventNotInvited             = "event_not_invited"
	CodeMissingEventAttendance      = "missing_event_attendance"
	CodeSingleAttendeeNotAllowed    = "single_attendee_not_allowed"
	CodeAttendeesNotAllowed         = "attendees_not_allowed"
	CodeMissingSingleAttendee       = "missing_single_attendee"
	CodeInvalidSingleAttendee       = "invalid_single_attendee"
	CodeSingleAttendeeNotAttending  = "single_attendee_must_be_attending"
	CodeNoAttendingPeople           = "no_attending_people"
	CodeMissingAttendees            = "missing_attendees"
	CodeInvalidAttendee             = "invalid_attendee"
	CodeAttendeeNotAttending        = "attendee_must_be_attending"
)

// Submission validates sub against group and returns every violated rule.
// maxAllergiesText bounds the per-person allergies free text (after trim).
// A nil or empty result means the submission is acceptable.
//
// Errors are ordered deterministically: completeness first (members in
// definition order, unknown ids sorted), then per-person rules in member
// order, then per-event rules in domain.EventKinds order.
func Submission(group domain.GroupDefinition, sub domain.Submission, maxAllergiesText int) []Error {
	var errs []Error

	// Completeness: submitted person keys must equal the member set.
	memberIDs := make(map[string]struct{}, len(group.Members))
	for _, m := range group.Members {
		memberIDs[m.PersonID] = struct{}{}
		if _, ok := sub.People[m.PersonID]; !ok {
			errs = append(errs, Error{
				Code:    CodeMissingPersonResponse,
				Message: fmt.Sprintf("missing response for person %q", m.PersonID),
				Field:   "people",
			})
		}
	}
	unknown := make([]string, 0)
	for id := range sub.People {
		if _, ok := memberIDs[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		errs = append(errs, Error{
			Code:    CodeUnknownPersonResponse,
			Message: fmt.Sprintf("unknown person %q in responses", id),
			Field:   "people",
		})
	}

	// Per-person rules, member order.
	for _, m := range group.Members {
		reply, ok := sub.People[m.PersonID]
		if !ok {
			continue
		}
		errs = append(errs, checkPerson(m.PersonID, reply, maxAllergiesText)...)
	}

	// Per-event rules, stable kind order.
	for _, kind := range domain.EventKinds {
		errs = append(errs, checkEvent(kind, group.IsInvited(kind), sub)...)
	}

	return errs
}

func checkPerson(personID string, reply domain.PersonReply, maxLen int) []Error {
	var errs []Error
	trimmed := strings.TrimSpace(reply.AllergiesText)
	field := "people." + personID

	if reply.Attending == domain.AttendingNo {
		if reply.HasAllergies != nil {
			errs = append(errs, Error{
				Code:    CodeAllergiesNotAllowed,
				Message: fmt.Sprintf("person %q is not attending; allergies must be empty", personID),
				Field:   field,
			})
		}
		if trimmed != "" {
			errs = append(errs, Error{
				Code:    CodeAllergiesTextNotAllowed,
				Message: fmt.Sprintf("person %q is not attending; allergies text must be empty", personID),
				Field:   field + ".allergiesText",
			})
		}
		return errs
	}

	if reply.HasAllergies == nil {
		return append(errs, Error{
			Code:    CodeMissingHasAllergies,
			Message: fmt.Sprintf("person %q must answer whether they have allergies", personID),
			Field:   field + ".hasAllergies",
		})
	}

	if *reply.HasAllergies {
		if trimmed == "" {
			return append(errs, Error{
				Code:    CodeMissingAllergiesText,
				Message: fmt.Sprintf("person %q indicated allergies; text is required", personID),
				Field:   field + ".allergiesText",
			})
		}
		if len(trimmed) > maxLen {
			errs = append(errs, Error{
				Code:    CodeAllergiesTextTooLong,
				Message: fmt.Sprintf("allergies text for person %q exceeds max length %d", personID, maxLen),
				Field:   field + ".allergiesText",
			})
		}
		return errs
	}

	if trimmed != "" {
		errs = append(errs, Error{
			Code:    CodeAllergiesTextWithoutAllergy,
			Message: fmt.Sprintf("person %q indicated no allergies; text must be empty", personID),
			Field:   field + ".allergiesText",
		})
	}
	return errs
}

func checkEvent(kind domain.EventKind, invited bool, sub domain.Submission) []Error {
	var errs []Error
	sel := sub.Events[kind]
	field := "events." + string(kind)

	if !invited {
		if sel.Variant != nil || sel.SingleAttendeeID != nil || sel.AttendeeIDs != nil {
			errs = append(errs, Error{
				Code:    CodeEventNotInvited,
				Message: fmt.Sprintf("group is not invited to %s", kind),
				Field:   field,
			})
		}
		return errs
	}

	if sel.Variant == nil {
		return append(errs, Error{
			Code:    CodeMissingEventAttendance,
			Message: fmt.Sprintf("missing attendance selection for %s", kind),
			Field:   field + ".attendance",
		})
	}

	switch *sel.Variant {
	case domain.VariantNone, domain.VariantAll:
		if sel.SingleAttendeeID != nil {
			errs = append(errs, singleNotAllowed(kind, field))
		}
		if sel.AttendeeIDs != nil {
			errs = append(errs, attendeesNotAllowed(kind, field))
		}

	case domain.VariantOne:
		if sel.AttendeeIDs != nil {
			errs = append(errs, attendeesNotAllowed(kind, field))
		}
		single := ""
		if sel.SingleAttendeeID != nil {
			single = strings.TrimSpace(*sel.SingleAttendeeID)
		}
		if single == "" {
			return append(errs, Error{
				Code:    CodeMissingSingleAttendee,
				Message: fmt.Sprintf("must select single attendee for %s", kind),
				Field:   field + ".singleAttendeeId",
			})
		}
		reply, ok := sub.People[*sel.SingleAttendeeID]
		if !ok {
			return append(errs, Error{
				Code:    CodeInvalidSingleAttendee,
				Message: fmt.Sprintf("selected single attendee %q is not a group member", *sel.SingleAttendeeID),
				Field:   field + ".singleAttendeeId",
			})
		}
		if reply.Attending != domain.AttendingYes {
			errs = append(errs, Error{
				Code:    CodeSingleAttendeeNotAttending,
				Message: fmt.Sprintf("selected single attendee %q must be attending", *sel.SingleAttendeeID),
				Field:   field + ".singleAttendeeId",
			})
		}
		if !anyAttending(sub) {
			errs = append(errs, noAttending(kind, field))
		}

	case domain.VariantSome:
		if sel.SingleAttendeeID != nil {
			errs = append(errs, singleNotAllowed(kind, field))
		}
		if len(sel.AttendeeIDs) == 0 {
			return append(errs, Error{
				Code:    CodeMissingAttendees,
				Message: fmt.Sprintf("must select at least one attendee for %s", kind),
				Field:   field + ".attendeeIds",
			})
		}
		if !anyAttending(sub) {
			return append(errs, noAttending(kind, field))
		}
		seen := make(map[string]struct{}, len(sel.AttendeeIDs))
		for _, id := range sel.AttendeeIDs {
			if strings.TrimSpace(id) == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			reply, ok := sub.People[id]
			if !ok {
				errs = append(errs, Error{
					Code:    CodeInvalidAttendee,
					Message: fmt.Sprintf("selected attendee %q is not a group member", id),
					Field:   field + ".attendeeIds",
				})
				continue
			}
			if reply.Attending != domain.AttendingYes {
				errs = append(errs, Error{
					Code:    CodeAttendeeNotAttending,
					Message: fmt.Sprintf("selected attendee %q must be attending", id),
					Field:   field + ".attendeeIds",
				})
			}
		}

	default:
		errs = append(errs, Error{
			Code:    CodeMissingEventAttendance,
			Message: fmt.Sprintf("unknown attendance selection %q for %s", *sel.Variant, kind),
			Field:   field + ".attendance",
		})
	}

	return errs
}

func anyAttending(sub domain.Submission) bool {
	for _, reply := range sub.People {
		if reply.Attending == domain.AttendingYes {
			return true
		}
	}
	return false
}

func singleNotAllowed(kind domain.EventKind, field string) Error {
	return Error{
		Code:    CodeSingleAttendeeNotAllowed,
		Message: fmt.Sprintf("single attendee only allowed when attendance is one for %s", kind),
		Field:   field + ".singleAttendeeId",
	}
}

func attendeesNotAllowed(kind domain.EventKind, field string) Error {
	return Error{
		Code:    CodeAttendeesNotAllowed,
		Message: fmt.Sprintf("attendee list only allowed when attendance is some for %s", kind),
		Field:   field + ".attendeeIds",
	}
}

func noAttending(kind domain.EventKind, field string) Error {
	return Error{
		Code:    CodeNoAttendingPeople,
		Message: fmt.Sprintf("at least one person must be attending for %s", kind),
		Field:   field + ".attendance",
	}
}
