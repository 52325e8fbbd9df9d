package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation says what the drain loop should do for a group.
type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// WorkStatus is the outbox item's state.
type WorkStatus string

const (
	WorkPending   WorkStatus = "pending"
	WorkSucceeded WorkStatus = "succeeded"
)

const (
	// maxStoredAttempts caps the persisted attempt counter.
	maxStoredAttempts = 1000
	// maxStoredErrorLen truncates stored error text.
	maxStoredErrorLen = 1000
)

// WorkItem is one export work item. There is at most one live item per
// group ("latest wins"): re-enqueueing overwrites operation and status but
// preserves the accumulated attempt count, which guards the sink against
// poison pills regardless of how often the group is resubmitted.
type WorkItem struct {
	GroupID      string
	Operation    Operation
	Status       WorkStatus
	AttemptCount int
	LastError    string
	UpdatedAt    time.Time
	VersionToken string
}

// EnqueueUpsert records that the group's confirmed state needs exporting.
// Idempotent: repeated enqueues leave a single pending upsert item.
func (s *Store) EnqueueUpsert(ctx context.Context, groupID string, now time.Time) error {
	return s.enqueue(ctx, groupID, OpUpsert, now)
}

// EnqueueDelete records that the group's export rows must be removed.
func (s *Store) EnqueueDelete(ctx context.Context, groupID string, now time.Time) error {
	return s.enqueue(ctx, groupID, OpDelete, now)
}

func (s *Store) enqueue(ctx context.Context, groupID string, op Operation, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO export_outbox (group_id, operation, status, updated_at, version_token)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			operation = excluded.operation,
			status = excluded.status,
			last_error = '',
			updated_at = excluded.updated_at,
			version_token = excluded.version_token
	`, groupID, string(op), string(WorkPending), encodeTime(now), uuid.NewString())
	if err != nil {
		return fmt.Errorf("enqueue export %s: %w", op, err)
	}
	return nil
}

// PendingWork returns up to maxItems pending work items, oldest first.
// A bounded scan is fine at the scale this system targets.
func (s *Store) PendingWork(ctx context.Context, maxItems int) ([]WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, operation, status, attempt_count, last_error, updated_at, version_token
		FROM export_outbox
		WHERE status = ?
		ORDER BY updated_at ASC, group_id ASC
		LIMIT ?
	`, string(WorkPending), maxItems)
	if err != nil {
		return nil, fmt.Errorf("query pending work: %w", err)
	}
	defer rows.Close()

	var items []WorkItem
	for rows.Next() {
		var (
			item      WorkItem
			op        string
			status    string
			updatedNS int64
		)
		if err := rows.Scan(&item.GroupID, &op, &status, &item.AttemptCount, &item.LastError, &updatedNS, &item.VersionToken); err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		item.Operation = Operation(op)
		item.Status = WorkStatus(status)
		item.UpdatedAt = decodeTime(updatedNS)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate work items: %w", err)
	}
	return items, nil
}

// MarkSucceeded flips a work item to succeeded, guarded by versionToken.
// A stale token (another enqueue happened in between) fails with
// ErrVersionConflict and leaves the fresher item untouched.
func (s *Store) MarkSucceeded(ctx context.Context, groupID, versionToken string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE export_outbox
		SET status = ?, last_error = '', updated_at = ?, version_token = ?
		WHERE group_id = ? AND version_token = ?
	`, string(WorkSucceeded), encodeTime(now), uuid.NewString(), groupID, versionToken)
	if err != nil {
		return fmt.Errorf("mark succeeded: %w", err)
	}
	return checkAffected(res, groupID)
}

// MarkFailed resets a work item to pending with an incremented (capped)
// attempt count and truncated error text, guarded by versionToken.
func (s *Store) MarkFailed(ctx context.Context, groupID, versionToken, errText string, now time.Time) error {
	if len(errText) > maxStoredErrorLen {
		errText = errText[:maxStoredErrorLen]
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE export_outbox
		SET status = ?, attempt_count = MIN(attempt_count + 1, ?), last_error = ?, updated_at = ?, version_token = ?
		WHERE group_id = ? AND version_token = ?
	`, string(WorkPending), maxStoredAttempts, errText, encodeTime(now), uuid.NewString(), groupID, versionToken)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return checkAffected(res, groupID)
}

// GetWorkItem returns the outbox item for a group or ErrNotFound.
func (s *Store) GetWorkItem(ctx context.Context, groupID string) (WorkItem, error) {
	var (
		item      WorkItem
		op        string
		status    string
		updatedNS int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT group_id, operation, status, attempt_count, last_error, updated_at, version_token
		FROM export_outbox
		WHERE group_id = ?
	`, groupID).Scan(&item.GroupID, &op, &status, &item.AttemptCount, &item.LastError, &updatedNS, &item.VersionToken)
	if errors.Is(err, sql.ErrNoRows) {
		return WorkItem{}, fmt.Errorf("work item %s: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return WorkItem{}, fmt.Errorf("get work item: %w", err)
	}
	item.Operation = Operation(op)
	item.Status = WorkStatus(status)
	item.UpdatedAt = decodeTime(updatedNS)
	return item, nil
}

func checkAffected(res interface{ RowsAffected() (int64, error) }, groupID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("work item %s: %w", groupID, ErrVersionConflict)
	}
	return nil
}
