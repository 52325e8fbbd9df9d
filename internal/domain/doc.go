// Package domain holds the core RSVP types shared by every layer.
//
// Two families of types live here:
//
//   - Definitions: GroupDefinition and PersonDefinition describe the invited
//     groups. They are immutable and externally sourced (see internal/invites).
//
//   - Responses: Submission is the loose, client-shaped input where every
//     field may be absent or contradictory; EventResponse is the strict
//     tagged-union form that can only be built through constructors, so an
//     invalid combination (e.g. a Some variant carrying a single-attendee id)
//     is unrepresentable once validation has passed.
//
// The storage layer serializes EventResponse at its own boundary; domain
// types carry no storage concerns.
package domain
