package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Collapsed reports whether noteID is collapsed under the given placement.
// A pair that was never written is collapsed.
func (s *Store) Collapsed(ctx context.Context, userID, noteID, itemID string) (bool, error) {
	if _, err := getNote(ctx, s.db, userID, noteID); err != nil {
		return false, err
	}
	var collapsed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT collapsed FROM note_ui_states WHERE note_id = ? AND canvas_item_id = ?`, noteID, itemID,
	).Scan(&collapsed)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query ui state: %w", err)
	}
	return collapsed, nil
}

// SetCollapsed upserts the collapse flag of noteID under a placement.
func (s *Store) SetCollapsed(ctx context.Context, userID, noteID, itemID string, collapsed bool) error {
	if _, err := getNote(ctx, s.db, userID, noteID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO note_ui_states (note_id, canvas_item_id, collapsed) VALUES (?, ?, ?)
		 ON CONFLICT(note_id, canvas_item_id) DO UPDATE SET collapsed = excluded.collapsed`,
		noteID, itemID, collapsed,
	)
	if err != nil {
		return fmt.Errorf("upsert ui state: %w", err)
	}
	return nil
}
