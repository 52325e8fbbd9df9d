package store

import (
	"context"
	"errors"
	"testing"

	"github.com/weddingtools/rsvpd/internal/domain"
)

func TestUpsertPerson_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestPerson("g1", "p1", "Ana Silva")
	rec.HasAllergies = true
	rec.AllergiesText = "no shellfish"

	if err := s.UpsertPerson(ctx, rec); err != nil {
		t.Fatalf("UpsertPerson() failed: %v", err)
	}

	people, err := s.ListPeople(ctx, "g1")
	if err != nil {
		t.Fatalf("ListPeople() failed: %v", err)
	}
	got, ok := people["p1"]
	if !ok {
		t.Fatal("person p1 not found")
	}
	if got.FullName != "Ana Silva" || !got.HasAllergies || got.AllergiesText != "no shellfish" {
		t.Errorf("got %+v", got)
	}
	if !got.UpdatedAt.Equal(rec.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, rec.UpdatedAt)
	}
}

func TestUpsertPerson_ReplacesPriorAnswer(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestPerson("g1", "p1", "Ana Silva")
	if err := s.UpsertPerson(ctx, rec); err != nil {
		t.Fatalf("first UpsertPerson() failed: %v", err)
	}

	rec.Attending = domain.AttendingNo
	if err := s.UpsertPerson(ctx, rec); err != nil {
		t.Fatalf("second UpsertPerson() failed: %v", err)
	}

	people, err := s.ListPeople(ctx, "g1")
	if err != nil {
		t.Fatalf("ListPeople() failed: %v", err)
	}
	if len(people) != 1 {
		t.Fatalf("len = %d, want 1", len(people))
	}
	if people["p1"].Attending != domain.AttendingNo {
		t.Errorf("Attending = %q, want no", people["p1"].Attending)
	}
}

func TestListPeople_EmptyGroupReturnsEmptyMap(t *testing.T) {
	s := createTestStore(t)

	people, err := s.ListPeople(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListPeople() failed: %v", err)
	}
	if people == nil {
		t.Error("expected empty map, got nil")
	}
	if len(people) != 0 {
		t.Errorf("len = %d, want 0", len(people))
	}
}

func TestDeletePeople_ScopedToGroup(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.UpsertPerson(ctx, createTestPerson("g1", "p1", "Ana")); err != nil {
		t.Fatalf("UpsertPerson() failed: %v", err)
	}
	if err := s.UpsertPerson(ctx, createTestPerson("g2", "p2", "Bruno")); err != nil {
		t.Fatalf("UpsertPerson() failed: %v", err)
	}

	if err := s.DeletePeople(ctx, "g1"); err != nil {
		t.Fatalf("DeletePeople() failed: %v", err)
	}

	g1, err := s.ListPeople(ctx, "g1")
	if err != nil {
		t.Fatalf("ListPeople(g1) failed: %v", err)
	}
	if len(g1) != 0 {
		t.Errorf("g1 len = %d, want 0", len(g1))
	}

	g2, err := s.ListPeople(ctx, "g2")
	if err != nil {
		t.Fatalf("ListPeople(g2) failed: %v", err)
	}
	if len(g2) != 1 {
		t.Errorf("g2 len = %d, want 1", len(g2))
	}
}

func TestClaims_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	claim := domain.DeviceClaim{DeviceID: "dev-1", GroupID: "g1", ExpiresAt: testTime()}
	if err := s.PutClaim(ctx, claim); err != nil {
		t.Fatalf("PutClaim() failed: %v", err)
	}

	got, err := s.GetClaim(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetClaim() failed: %v", err)
	}
	if got.GroupID != "g1" || !got.ExpiresAt.Equal(testTime()) {
		t.Errorf("got %+v", got)
	}
}

func TestPutClaim_OneClaimPerDevice(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.PutClaim(ctx, domain.DeviceClaim{DeviceID: "dev-1", GroupID: "g1"}); err != nil {
		t.Fatalf("PutClaim() failed: %v", err)
	}
	if err := s.PutClaim(ctx, domain.DeviceClaim{DeviceID: "dev-1", GroupID: "g2"}); err != nil {
		t.Fatalf("second PutClaim() failed: %v", err)
	}

	got, err := s.GetClaim(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetClaim() failed: %v", err)
	}
	if got.GroupID != "g2" {
		t.Errorf("GroupID = %q, want g2", got.GroupID)
	}
}

func TestGetClaim_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetClaim(context.Background(), "unknown")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteClaim_OnlyWhenGroupMatches(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.PutClaim(ctx, domain.DeviceClaim{DeviceID: "dev-1", GroupID: "g2"}); err != nil {
		t.Fatalf("PutClaim() failed: %v", err)
	}

	// Claim moved on; deleting the old group binding is a no-op.
	if err := s.DeleteClaim(ctx, "dev-1", "g1"); err != nil {
		t.Fatalf("DeleteClaim() failed: %v", err)
	}
	if _, err := s.GetClaim(ctx, "dev-1"); err != nil {
		t.Errorf("claim should survive mismatched delete: %v", err)
	}

	if err := s.DeleteClaim(ctx, "dev-1", "g2"); err != nil {
		t.Fatalf("DeleteClaim() failed: %v", err)
	}
	if _, err := s.GetClaim(ctx, "dev-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
