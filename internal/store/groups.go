package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/weddingtools/rsvpd/internal/domain"
)

// GetOrCreateGroup returns the group record, creating an Open one on first
// access. Creation races are resolved by ON CONFLICT DO NOTHING plus re-read,
// so concurrent first readers all observe the same record.
func (s *Store) GetOrCreateGroup(ctx context.Context, groupID string) (domain.GroupRecord, error) {
	rec, err := s.GetGroup(ctx, groupID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.GroupRecord{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO groups (group_id, status, version_token)
		VALUES (?, ?, ?)
		ON CONFLICT(group_id) DO NOTHING
	`, groupID, string(domain.StatusOpen), uuid.NewString())
	if err != nil {
		return domain.GroupRecord{}, fmt.Errorf("create group: %w", err)
	}

	return s.GetGroup(ctx, groupID)
}

// GetGroup returns the group record or ErrNotFound.
func (s *Store) GetGroup(ctx context.Context, groupID string) (domain.GroupRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT group_id, status, lock_holder_id, lock_expires_at, confirmed_at, event_response, version_token
		FROM groups
		WHERE group_id = ?
	`, groupID)
	return scanGroup(row, groupID)
}

// UpdateGroup conditionally rewrites the group record using the version
// token carried by rec. Returns the updated record with a fresh token, or
// ErrVersionConflict if the token is stale. A stale write never overwrites.
func (s *Store) UpdateGroup(ctx context.Context, rec domain.GroupRecord) (domain.GroupRecord, error) {
	respJSON, err := marshalEventResponse(rec.EventResponse)
	if err != nil {
		return domain.GroupRecord{}, fmt.Errorf("update group: %w", err)
	}

	newToken := uuid.NewString()
	res, err := s.db.ExecContext(ctx, `
		UPDATE groups
		SET status = ?, lock_holder_id = ?, lock_expires_at = ?, confirmed_at = ?,
		    event_response = ?, version_token = ?
		WHERE group_id = ? AND version_token = ?
	`,
		string(rec.Status),
		rec.LockHolderID,
		encodeTime(rec.LockExpiresAt),
		encodeTime(rec.ConfirmedAt),
		nullableText(respJSON),
		newToken,
		rec.GroupID,
		rec.VersionToken,
	)
	if err != nil {
		return domain.GroupRecord{}, fmt.Errorf("update group: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.GroupRecord{}, fmt.Errorf("update group: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetGroup(ctx, rec.GroupID); errors.Is(getErr, ErrNotFound) {
			return domain.GroupRecord{}, fmt.Errorf("update group %s: %w", rec.GroupID, ErrNotFound)
		}
		return domain.GroupRecord{}, fmt.Errorf("update group %s: %w", rec.GroupID, ErrVersionConflict)
	}

	updated := rec
	updated.VersionToken = newToken
	return updated, nil
}

// OverwriteGroup rewrites the group record unconditionally, creating it if
// absent. Used only by the administrative reset path, which always wins.
func (s *Store) OverwriteGroup(ctx context.Context, rec domain.GroupRecord) (domain.GroupRecord, error) {
	respJSON, err := marshalEventResponse(rec.EventResponse)
	if err != nil {
		return domain.GroupRecord{}, fmt.Errorf("overwrite group: %w", err)
	}

	newToken := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO groups (group_id, status, lock_holder_id, lock_expires_at, confirmed_at, event_response, version_token)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			status = excluded.status,
			lock_holder_id = excluded.lock_holder_id,
			lock_expires_at = excluded.lock_expires_at,
			confirmed_at = excluded.confirmed_at,
			event_response = excluded.event_response,
			version_token = excluded.version_token
	`,
		rec.GroupID,
		string(rec.Status),
		rec.LockHolderID,
		encodeTime(rec.LockExpiresAt),
		encodeTime(rec.ConfirmedAt),
		nullableText(respJSON),
		newToken,
	)
	if err != nil {
		return domain.GroupRecord{}, fmt.Errorf("overwrite group: %w", err)
	}

	updated := rec
	updated.VersionToken = newToken
	return updated, nil
}

// AllGroups returns every stored group record, ordered by group id.
func (s *Store) AllGroups(ctx context.Context) ([]domain.GroupRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, status, lock_holder_id, lock_expires_at, confirmed_at, event_response, version_token
		FROM groups
		ORDER BY group_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var recs []domain.GroupRecord
	for rows.Next() {
		rec, err := scanGroup(rows, "")
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return recs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner, groupID string) (domain.GroupRecord, error) {
	var (
		rec       domain.GroupRecord
		status    string
		expiresNS int64
		confirmNS int64
		respJSON  sql.NullString
	)
	err := row.Scan(&rec.GroupID, &status, &rec.LockHolderID, &expiresNS, &confirmNS, &respJSON, &rec.VersionToken)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GroupRecord{}, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return domain.GroupRecord{}, fmt.Errorf("scan group: %w", err)
	}

	rec.Status = domain.GroupStatus(status)
	rec.LockExpiresAt = decodeTime(expiresNS)
	rec.ConfirmedAt = decodeTime(confirmNS)
	if respJSON.Valid {
		resp, err := unmarshalEventResponse(respJSON.String)
		if err != nil {
			return domain.GroupRecord{}, err
		}
		rec.EventResponse = resp
	}
	return rec, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
