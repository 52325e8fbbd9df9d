package store

import (
	"context"
	"fmt"

	"github.com/weddingtools/rsvpd/internal/projection"
)

// exportBatchSize bounds how many rows go into one transaction, mirroring
// the sink contract's per-call batch limit. Larger inputs are chunked.
const exportBatchSize = 100

// UpsertExportRows writes projection rows into the export sink table,
// replacing existing rows by (group, person) key. Idempotent: the same rows
// written twice leave the table unchanged.
func (s *Store) UpsertExportRows(ctx context.Context, rows []projection.Row) error {
	for start := 0; start < len(rows); start += exportBatchSize {
		end := start + exportBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.upsertExportBatch(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertExportBatch(ctx context.Context, rows []projection.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("export batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO export_rows (group_id, person_id, full_name, dinner, evening_party, allergies)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(group_id, person_id) DO UPDATE SET
				full_name = excluded.full_name,
				dinner = excluded.dinner,
				evening_party = excluded.evening_party,
				allergies = excluded.allergies
		`, row.GroupID, row.PersonID, row.FullName, row.Dinner, row.EveningParty, row.Allergies)
		if err != nil {
			return fmt.Errorf("export batch: upsert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("export batch: commit: %w", err)
	}
	return nil
}

// DeleteExportRows removes every export row for a group.
func (s *Store) DeleteExportRows(ctx context.Context, groupID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM export_rows WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("delete export rows: %w", err)
	}
	return nil
}

// ExportRows returns the current export rows for a group, in person order.
// Primarily for tests and the status listing.
func (s *Store) ExportRows(ctx context.Context, groupID string) ([]projection.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, person_id, full_name, dinner, evening_party, allergies
		FROM export_rows
		WHERE group_id = ?
		ORDER BY person_id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query export rows: %w", err)
	}
	defer rows.Close()

	var out []projection.Row
	for rows.Next() {
		var row projection.Row
		if err := rows.Scan(&row.GroupID, &row.PersonID, &row.FullName, &row.Dinner, &row.EveningParty, &row.Allergies); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export rows: %w", err)
	}
	return out, nil
}
