package store

import (
	"context"
	"fmt"

	"github.com/weddingtools/rsvpd/internal/domain"
)

// UpsertPerson writes one person response, replacing any prior answer.
// Person records are not version-guarded: the group record's Confirmed
// transition is the authoritative write that makes them trustworthy.
func (s *Store) UpsertPerson(ctx context.Context, rec domain.PersonRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO person_responses (group_id, person_id, full_name, attending, has_allergies, allergies_text, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_id, person_id) DO UPDATE SET
			full_name = excluded.full_name,
			attending = excluded.attending,
			has_allergies = excluded.has_allergies,
			allergies_text = excluded.allergies_text,
			updated_at = excluded.updated_at
	`,
		rec.GroupID,
		rec.PersonID,
		rec.FullName,
		string(rec.Attending),
		boolToInt(rec.HasAllergies),
		rec.AllergiesText,
		encodeTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert person response: %w", err)
	}
	return nil
}

// ListPeople returns all person responses for a group, keyed by person id.
// Returns an empty map (not nil) when the group has no responses.
func (s *Store) ListPeople(ctx context.Context, groupID string) (map[string]domain.PersonRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, person_id, full_name, attending, has_allergies, allergies_text, updated_at
		FROM person_responses
		WHERE group_id = ?
		ORDER BY person_id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query person responses: %w", err)
	}
	defer rows.Close()

	recs := make(map[string]domain.PersonRecord)
	for rows.Next() {
		var (
			rec       domain.PersonRecord
			attending string
			allergies int
			updatedNS int64
		)
		if err := rows.Scan(&rec.GroupID, &rec.PersonID, &rec.FullName, &attending, &allergies, &rec.AllergiesText, &updatedNS); err != nil {
			return nil, fmt.Errorf("scan person response: %w", err)
		}
		rec.Attending = domain.Attending(attending)
		rec.HasAllergies = allergies != 0
		rec.UpdatedAt = decodeTime(updatedNS)
		recs[rec.PersonID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate person responses: %w", err)
	}
	return recs, nil
}

// DeletePeople removes every person response for a group. Used by the
// administrative reset path.
func (s *Store) DeletePeople(ctx context.Context, groupID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM person_responses WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("delete person responses: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
