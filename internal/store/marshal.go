package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/weddingtools/rsvpd/internal/domain"
)

// eventReplyDoc is the storage wire form of one event's strict reply.
// The domain type is a sum type with unexported payload; this flat document
// exists only at the storage boundary.
type eventReplyDoc struct {
	Variant          string   `json:"variant"`
	SingleAttendeeID string   `json:"singleAttendeeId,omitempty"`
	AttendeeIDs      []string `json:"attendeeIds,omitempty"`
}

// marshalEventResponse converts the confirmed aggregate to JSON TEXT.
// Go's json.Marshal sorts map keys, so output is deterministic for a given
// response. A nil response marshals to the empty string (stored as NULL).
func marshalEventResponse(resp domain.EventResponse) (string, error) {
	if resp == nil {
		return "", nil
	}
	docs := make(map[string]eventReplyDoc, len(resp))
	for kind, reply := range resp {
		doc := eventReplyDoc{Variant: string(reply.Variant())}
		if id, ok := reply.SingleAttendeeID(); ok {
			doc.SingleAttendeeID = id
		}
		if ids, ok := reply.AttendeeIDs(); ok {
			doc.AttendeeIDs = ids
		}
		docs[string(kind)] = doc
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(docs); err != nil {
		return "", fmt.Errorf("marshal event response: %w", err)
	}
	return string(bytes.TrimSpace(buf.Bytes())), nil
}

// unmarshalEventResponse parses JSON TEXT back into the strict aggregate,
// going through the domain constructors so an invalid stored combination
// cannot produce an invalid in-memory value.
func unmarshalEventResponse(data string) (domain.EventResponse, error) {
	if data == "" {
		return nil, nil
	}
	var docs map[string]eventReplyDoc
	if err := json.Unmarshal([]byte(data), &docs); err != nil {
		return nil, fmt.Errorf("unmarshal event response: %w", err)
	}

	resp := make(domain.EventResponse, len(docs))
	for kind, doc := range docs {
		var reply domain.EventReply
		switch domain.Variant(doc.Variant) {
		case domain.VariantNone:
			reply = domain.ReplyNone()
		case domain.VariantAll:
			reply = domain.ReplyAll()
		case domain.VariantOne:
			reply = domain.ReplyOne(doc.SingleAttendeeID)
		case domain.VariantSome:
			reply = domain.ReplySome(doc.AttendeeIDs)
		default:
			return nil, fmt.Errorf("unmarshal event response: unknown variant %q for %s", doc.Variant, kind)
		}
		resp[domain.EventKind(kind)] = reply
	}
	return resp, nil
}
