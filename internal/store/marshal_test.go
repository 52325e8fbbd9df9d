package store

import (
	"reflect"
	"testing"

	"github.com/weddingtools/rsvpd/internal/domain"
)

func TestMarshalEventResponse_NilMapsToEmpty(t *testing.T) {
	data, err := marshalEventResponse(nil)
	if err != nil {
		t.Fatalf("marshalEventResponse(nil) failed: %v", err)
	}
	if data != "" {
		t.Errorf("data = %q, want empty", data)
	}

	resp, err := unmarshalEventResponse("")
	if err != nil {
		t.Fatalf("unmarshalEventResponse(\"\") failed: %v", err)
	}
	if resp != nil {
		t.Errorf("resp = %+v, want nil", resp)
	}
}

func TestMarshalEventResponse_RoundTripAllVariants(t *testing.T) {
	resp := domain.EventResponse{
		domain.EventDinner:       domain.ReplySome([]string{"p2", "p1"}),
		domain.EventEveningParty: domain.ReplyOne("p1"),
	}

	data, err := marshalEventResponse(resp)
	if err != nil {
		t.Fatalf("marshalEventResponse() failed: %v", err)
	}

	got, err := unmarshalEventResponse(data)
	if err != nil {
		t.Fatalf("unmarshalEventResponse() failed: %v", err)
	}
	if !reflect.DeepEqual(got, resp) {
		t.Errorf("round trip = %+v, want %+v", got, resp)
	}
}

func TestMarshalEventResponse_Deterministic(t *testing.T) {
	resp := domain.EventResponse{
		domain.EventDinner:       domain.ReplyAll(),
		domain.EventEveningParty: domain.ReplyNone(),
	}

	first, err := marshalEventResponse(resp)
	if err != nil {
		t.Fatalf("marshalEventResponse() failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := marshalEventResponse(resp)
		if err != nil {
			t.Fatalf("marshalEventResponse() iteration %d failed: %v", i, err)
		}
		if again != first {
			t.Fatalf("output varies: %q vs %q", again, first)
		}
	}
}

func TestUnmarshalEventResponse_UnknownVariant(t *testing.T) {
	_, err := unmarshalEventResponse(`{"dinner":{"variant":"maybe"}}`)
	if err == nil {
		t.Error("expected error for unknown variant")
	}
}

func TestUnmarshalEventResponse_BadJSON(t *testing.T) {
	_, err := unmarshalEventResponse(`{not json`)
	if err == nil {
		t.Error("expected error for malformed JSON")
	}
}
