package lock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weddingtools/rsvpd/internal/domain"
	"github.com/weddingtools/rsvpd/internal/store"
	"github.com/weddingtools/rsvpd/internal/testutil"
)

const lockDuration = 2 * time.Minute

func newTestManager(t *testing.T) (*Manager, *store.Store, *testutil.Clock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := testutil.NewClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewManager(st, clock, zerolog.Nop()), st, clock
}

func confirmedResponse() domain.EventResponse {
	return domain.EventResponse{
		domain.EventDinner:       domain.ReplyAll(),
		domain.EventEveningParty: domain.ReplyNone(),
	}
}

func attendingPeople() []domain.PersonRecord {
	return []domain.PersonRecord{
		{PersonID: "p1", FullName: "Ana Silva", Attending: domain.AttendingYes},
		{PersonID: "p2", FullName: "Bruno Costa", Attending: domain.AttendingYes},
	}
}

func TestClaim_AcquiresOpenGroup(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	rec, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusLocked, rec.Status)
	assert.Equal(t, "dev-1", rec.LockHolderID)
	assert.True(t, rec.LockExpiresAt.Equal(clock.Now().Add(lockDuration)))
}

func TestClaim_SameDeviceExtends(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	rec, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	assert.Equal(t, "dev-1", rec.LockHolderID)
	assert.True(t, rec.LockExpiresAt.Equal(clock.Now().Add(lockDuration)), "expiry should extend from the second claim")
}

func TestClaim_OtherDeviceBlockedAndHolderHidden(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	rec, err := m.Claim(ctx, "g1", "dev-2", lockDuration)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusLocked, rec.Status)
	assert.Empty(t, rec.LockHolderID, "the holder's identity must not leak")
	assert.False(t, rec.LockExpiresAt.IsZero(), "expiry is disclosed for countdowns")
}

func TestClaim_ExpiredLockIsReclaimable(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	clock.Advance(lockDuration)
	rec, err := m.Claim(ctx, "g1", "dev-2", lockDuration)
	require.NoError(t, err)

	assert.Equal(t, "dev-2", rec.LockHolderID)
}

func TestClaim_ConfirmedGroupGrantsNoLock(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)
	require.NoError(t, m.Submit(ctx, "g1", "dev-1", confirmedResponse(), attendingPeople()))

	rec, err := m.Claim(ctx, "g1", "dev-2", lockDuration)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, rec.Status)
	assert.Empty(t, rec.LockHolderID)
}

func TestClaim_ReleasesPreviousGroup(t *testing.T) {
	m, st, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	// Claiming a second group frees the first for other devices.
	_, err = m.Claim(ctx, "g2", "dev-1", lockDuration)
	require.NoError(t, err)

	g1, err := st.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, g1.Status)
	assert.Empty(t, g1.LockHolderID)

	claim, err := st.GetClaim(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "g2", claim.GroupID, "device tracks exactly one claim")
}

func TestClaim_DoesNotReleaseOthersLock(t *testing.T) {
	m, st, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	// dev-2 was tracked on g1 by a stale claim row but no longer holds it.
	require.NoError(t, st.PutClaim(ctx, domain.DeviceClaim{DeviceID: "dev-2", GroupID: "g1"}))

	_, err = m.Claim(ctx, "g2", "dev-2", lockDuration)
	require.NoError(t, err)

	g1, err := st.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", g1.LockHolderID, "dev-1's lock must survive")
}

// failingClaimStore breaks the advisory claim-tracking reads so the test can
// prove claims still succeed when the advisory path is down.
type failingClaimStore struct {
	Store
}

func (f *failingClaimStore) GetClaim(ctx context.Context, deviceID string) (domain.DeviceClaim, error) {
	return domain.DeviceClaim{}, errors.New("claim table unavailable")
}

func TestClaim_SucceedsWhenAdvisoryReleaseFails(t *testing.T) {
	_, st, clock := newTestManager(t)
	broken := NewManager(&failingClaimStore{Store: st}, clock, zerolog.Nop())

	rec, err := broken.Claim(context.Background(), "g1", "dev-1", lockDuration)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLocked, rec.Status)
}

// conflictingStore rejects the first n group writes with a version
// conflict, then delegates. writes counts every attempt so tests can pin
// the retry budget to an exact number.
type conflictingStore struct {
	Store
	conflicts int
	writes    int
}

func (c *conflictingStore) UpdateGroup(ctx context.Context, rec domain.GroupRecord) (domain.GroupRecord, error) {
	c.writes++
	if c.writes <= c.conflicts {
		return domain.GroupRecord{}, store.ErrVersionConflict
	}
	return c.Store.UpdateGroup(ctx, rec)
}

func TestClaim_RetriesOnceOnVersionConflict(t *testing.T) {
	_, st, clock := newTestManager(t)
	cs := &conflictingStore{Store: st, conflicts: 1}
	m := NewManager(cs, clock, zerolog.Nop())

	rec, err := m.Claim(context.Background(), "g1", "dev-1", lockDuration)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLocked, rec.Status)
	assert.Equal(t, "dev-1", rec.LockHolderID)
	assert.Equal(t, 2, cs.writes, "one lost write, one winning write")
}

func TestClaim_SurfacesConflictAfterExhaustedRetry(t *testing.T) {
	_, st, clock := newTestManager(t)
	cs := &conflictingStore{Store: st, conflicts: 2}
	m := NewManager(cs, clock, zerolog.Nop())
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.Error(t, err)
	assert.True(t, store.IsVersionConflict(err))
	assert.Equal(t, 2, cs.writes, "exactly two write attempts, never a third")

	// Nothing landed in the store and no claim was recorded.
	g1, err := st.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, g1.Status)
	_, err = st.GetClaim(ctx, "dev-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmit_FailsClosedOnVersionConflict(t *testing.T) {
	m, st, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	cs := &conflictingStore{Store: st, conflicts: 1}
	racy := NewManager(cs, clock, zerolog.Nop())
	err = racy.Submit(ctx, "g1", "dev-1", confirmedResponse(), attendingPeople())

	conflict, ok := AsConflict(err)
	require.True(t, ok, "mid-submit version conflict must become a conflict error, got %v", err)
	assert.Equal(t, ReasonLockInvalid, conflict.Reason)
	assert.Equal(t, "g1", conflict.GroupID)
	assert.Equal(t, 1, cs.writes, "no second attempt on submit")

	// The group record is untouched: still locked by dev-1, never flipped
	// to confirmed, and the device claim survives.
	g1, err := st.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLocked, g1.Status)
	assert.Equal(t, "dev-1", g1.LockHolderID)
	assert.True(t, g1.ConfirmedAt.IsZero())
	claim, err := st.GetClaim(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "g1", claim.GroupID)
}

func TestSubmit_HappyPath(t *testing.T) {
	m, st, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	require.NoError(t, m.Submit(ctx, "g1", "dev-1", confirmedResponse(), attendingPeople()))

	rec, err := st.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, rec.Status)
	assert.True(t, rec.ConfirmedAt.Equal(clock.Now()))
	assert.Empty(t, rec.LockHolderID)
	assert.True(t, rec.LockExpiresAt.IsZero())
	assert.Equal(t, confirmedResponse(), rec.EventResponse)

	people, err := st.ListPeople(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "g1", people["p1"].GroupID)
	assert.True(t, people["p1"].UpdatedAt.Equal(clock.Now()))

	// The device is free to claim elsewhere.
	_, err = st.GetClaim(ctx, "dev-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmit_WithoutLock(t *testing.T) {
	m, st, _ := newTestManager(t)
	ctx := context.Background()

	_, err := st.GetOrCreateGroup(ctx, "g1")
	require.NoError(t, err)

	err = m.Submit(ctx, "g1", "dev-1", confirmedResponse(), attendingPeople())
	ce, ok := AsConflict(err)
	require.True(t, ok, "want conflict, got %v", err)
	assert.Equal(t, ReasonLockInvalid, ce.Reason)

	people, err := st.ListPeople(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, people, "a rejected submit must not write person records")
}

func TestSubmit_ExpiredLock(t *testing.T) {
	m, st, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	clock.Advance(lockDuration)
	err = m.Submit(ctx, "g1", "dev-1", confirmedResponse(), attendingPeople())
	ce, ok := AsConflict(err)
	require.True(t, ok, "want conflict, got %v", err)
	assert.Equal(t, ReasonLockInvalid, ce.Reason)

	people, err := st.ListPeople(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, people)
}

func TestSubmit_WrongHolder(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	err = m.Submit(ctx, "g1", "dev-2", confirmedResponse(), attendingPeople())
	ce, ok := AsConflict(err)
	require.True(t, ok, "want conflict, got %v", err)
	assert.Equal(t, ReasonLocked, ce.Reason)
	assert.Equal(t, 90, ce.SecondsLeft)
}

func TestSubmit_ConfirmedIsTerminal(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)
	require.NoError(t, m.Submit(ctx, "g1", "dev-1", confirmedResponse(), attendingPeople()))

	err = m.Submit(ctx, "g1", "dev-1", confirmedResponse(), attendingPeople())
	ce, ok := AsConflict(err)
	require.True(t, ok, "want conflict, got %v", err)
	assert.Equal(t, ReasonConfirmed, ce.Reason)
}

func TestReset_ReopensConfirmedGroup(t *testing.T) {
	m, st, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)
	require.NoError(t, m.Submit(ctx, "g1", "dev-1", confirmedResponse(), attendingPeople()))

	require.NoError(t, m.Reset(ctx, "g1"))

	rec, err := st.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, rec.Status)
	assert.True(t, rec.ConfirmedAt.IsZero())
	assert.Nil(t, rec.EventResponse)

	people, err := st.ListPeople(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, people)

	// A new claim and submit cycle works after reset.
	_, err = m.Claim(ctx, "g1", "dev-2", lockDuration)
	require.NoError(t, err)
	assert.NoError(t, m.Submit(ctx, "g1", "dev-2", confirmedResponse(), attendingPeople()))
}

func TestReset_WinsOverActiveLock(t *testing.T) {
	m, st, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Claim(ctx, "g1", "dev-1", lockDuration)
	require.NoError(t, err)

	require.NoError(t, m.Reset(ctx, "g1"))

	rec, err := st.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, rec.Status)

	// The old holder's submit now fails closed.
	err = m.Submit(ctx, "g1", "dev-1", confirmedResponse(), attendingPeople())
	assert.True(t, IsConflict(err), "want conflict, got %v", err)
}

func TestSecondsLeft(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, secondsLeft(time.Time{}, now))
	assert.Equal(t, 0, secondsLeft(now, now))
	assert.Equal(t, 0, secondsLeft(now.Add(-time.Second), now))
	assert.Equal(t, 1, secondsLeft(now.Add(500*time.Millisecond), now), "partial seconds round up")
	assert.Equal(t, 90, secondsLeft(now.Add(90*time.Second), now))
}
