package testutil

import "github.com/weddingtools/rsvpd/internal/domain"

// CoupleGroup is a two-person group invited to both events.
func CoupleGroup() domain.GroupDefinition {
	return domain.GroupDefinition{
		GroupID:   "g-river",
		Label:     "Ana & Bruno",
		InvitedTo: []domain.EventKind{domain.EventDinner, domain.EventEveningParty},
		Members: []domain.PersonDefinition{
			{PersonID: "p1", FullName: "Ana Silva"},
			{PersonID: "p2", FullName: "Bruno Costa"},
		},
	}
}

// DinnerOnlyGroup is a single-person group invited to dinner only.
func DinnerOnlyGroup() domain.GroupDefinition {
	return domain.GroupDefinition{
		GroupID:   "g-lake",
		Label:     "Carla",
		InvitedTo: []domain.EventKind{domain.EventDinner},
		Members: []domain.PersonDefinition{
			{PersonID: "p9", FullName: "Carla Mendes"},
		},
	}
}

// YesReply is a PersonReply attending with no allergies.
func YesReply() domain.PersonReply {
	no := false
	return domain.PersonReply{Attending: domain.AttendingYes, HasAllergies: &no}
}

// NoReply is a PersonReply not attending.
func NoReply() domain.PersonReply {
	return domain.PersonReply{Attending: domain.AttendingNo}
}

// AllergicReply is a PersonReply attending with the given allergies text.
func AllergicReply(text string) domain.PersonReply {
	yes := true
	return domain.PersonReply{Attending: domain.AttendingYes, HasAllergies: &yes, AllergiesText: text}
}

// VariantPtr returns a pointer to v, for building loose submissions.
func VariantPtr(v domain.Variant) *domain.Variant { return &v }

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }
