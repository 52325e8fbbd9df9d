package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/weddingtools/rsvpd/internal/domain"
)

// createTestStore creates a fresh on-disk store under a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testTime is a fixed instant with sub-second precision so round-trips
// through the nanosecond encoding are exact.
func testTime() time.Time {
	return time.Date(2026, 6, 1, 12, 0, 0, 123456789, time.UTC)
}

// createTestPerson builds a minimal attending person record.
func createTestPerson(groupID, personID, fullName string) domain.PersonRecord {
	return domain.PersonRecord{
		GroupID:   groupID,
		PersonID:  personID,
		FullName:  fullName,
		Attending: domain.AttendingYes,
		UpdatedAt: testTime(),
	}
}
