package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/weddingtools/rsvpd/internal/domain"
)

// GetClaim returns the device's current claim record or ErrNotFound.
func (s *Store) GetClaim(ctx context.Context, deviceID string) (domain.DeviceClaim, error) {
	var (
		claim     domain.DeviceClaim
		expiresNS int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, group_id, expires_at
		FROM device_claims
		WHERE device_id = ?
	`, deviceID).Scan(&claim.DeviceID, &claim.GroupID, &expiresNS)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeviceClaim{}, fmt.Errorf("claim for device: %w", ErrNotFound)
	}
	if err != nil {
		return domain.DeviceClaim{}, fmt.Errorf("get device claim: %w", err)
	}
	claim.ExpiresAt = decodeTime(expiresNS)
	return claim, nil
}

// PutClaim records the single group this device currently holds. Any prior
// claim row for the device is replaced, enforcing one active claim per
// device.
func (s *Store) PutClaim(ctx context.Context, claim domain.DeviceClaim) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_claims (device_id, group_id, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			group_id = excluded.group_id,
			expires_at = excluded.expires_at
	`, claim.DeviceID, claim.GroupID, encodeTime(claim.ExpiresAt))
	if err != nil {
		return fmt.Errorf("put device claim: %w", err)
	}
	return nil
}

// DeleteClaim removes the device's claim, but only if it still points at the
// given group. A claim that has since moved to another group is left alone.
func (s *Store) DeleteClaim(ctx context.Context, deviceID, groupID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM device_claims
		WHERE device_id = ? AND group_id = ?
	`, deviceID, groupID)
	if err != nil {
		return fmt.Errorf("delete device claim: %w", err)
	}
	return nil
}
