// Package projection derives per-person, per-event attendance marks from a
// confirmed group response. It is pure: the export path re-derives rows from
// persisted state on every drain, nothing here is stored.
package projection

import "github.com/weddingtools/rsvpd/internal/domain"

// Mark is the cell value for a person who attends an event.
const Mark = "X"

// Row is one export row: one member, with a mark per invited event and the
// allergies text when applicable.
type Row struct {
	GroupID      string
	PersonID     string
	FullName     string
	Dinner       string
	EveningParty string
	Allergies    string
}

// Rows builds export rows for every member of the group, in member order.
//
// A member's mark for an event is set only when the member's own answer is
// attending AND the event reply includes them (all selects everyone, one only
// the named id, some only the listed ids, none nobody). Members without a
// stored reply count as not attending. Events the group is not invited to
// stay blank. Allergies text is surfaced only for attending members who
// declared allergies.
func Rows(group domain.GroupDefinition, resp domain.EventResponse, people map[string]domain.PersonReply) []Row {
	rows := make([]Row, 0, len(group.Members))
	for _, m := range group.Members {
		reply, ok := people[m.PersonID]
		if !ok {
			reply = domain.PersonReply{Attending: domain.AttendingNo}
		}

		row := Row{
			GroupID:  group.GroupID,
			PersonID: m.PersonID,
			FullName: m.FullName,
		}

		if group.IsInvited(domain.EventDinner) {
			row.Dinner = mark(resp, domain.EventDinner, m.PersonID, reply)
		}
		if group.IsInvited(domain.EventEveningParty) {
			row.EveningParty = mark(resp, domain.EventEveningParty, m.PersonID, reply)
		}

		if reply.Attending == domain.AttendingYes && reply.HasAllergies != nil && *reply.HasAllergies {
			row.Allergies = reply.AllergiesText
		}

		rows = append(rows, row)
	}
	return rows
}

func mark(resp domain.EventResponse, kind domain.EventKind, personID string, reply domain.PersonReply) string {
	if reply.Attending != domain.AttendingYes {
		return ""
	}
	eventReply, ok := resp[kind]
	if !ok {
		return ""
	}
	if eventReply.Includes(personID) {
		return Mark
	}
	return ""
}
