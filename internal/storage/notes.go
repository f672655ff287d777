package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/humanid"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/mention"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

const noteColumns = `n.id, n.user_id, COALESCE(n.parent_id, ''), n.human_readable_id, n.title, n.content,
	n.metadata, n.search_text, n.embedding IS NOT NULL, n.created_at, n.updated_at`

// humanIDAttempts bounds the retries on adjective-noun collisions before a
// numeric suffix is added.
const humanIDAttempts = 8

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*models.Note, error) {
	var n models.Note
	err := row.Scan(&n.ID, &n.UserID, &n.ParentID, &n.HumanReadableID, &n.Title, &n.Content,
		&n.Metadata, &n.SearchText, &n.HasEmbedding, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan note: %w", err)
	}
	return &n, nil
}

func collectNotes(rows *sql.Rows) ([]models.Note, error) {
	defer rows.Close()
	var notes []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// CreateNote inserts an empty note for userID. A non-empty parentID makes it
// a child; the parent must belong to the same user.
func (s *Store) CreateNote(ctx context.Context, userID, parentID string) (*models.Note, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	n, err := createNote(ctx, tx, userID, parentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func createNote(ctx context.Context, q queryer, userID, parentID string) (*models.Note, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	if parentID != "" {
		if _, err := getNote(ctx, q, userID, parentID); err != nil {
			return nil, fmt.Errorf("parent %q: %w", parentID, err)
		}
	}

	hid, err := freeHumanID(ctx, q)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	_, err = q.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, parent_id, human_readable_id, search_text) VALUES (?, ?, NULLIF(?, ''), ?, ?)`,
		id, userID, parentID, hid, models.BuildSearchText("", "", ""),
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return getNote(ctx, q, userID, id)
}

func freeHumanID(ctx context.Context, q queryer) (string, error) {
	taken := func(hid string) (bool, error) {
		var exists bool
		err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM notes WHERE human_readable_id = ?)`, hid).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("lookup human id: %w", err)
		}
		return exists, nil
	}
	base := humanid.New()
	for i := 0; i < humanIDAttempts; i++ {
		ok, err := taken(base)
		if err != nil {
			return "", err
		}
		if !ok {
			return base, nil
		}
		base = humanid.New()
	}
	for n := 2; ; n++ {
		hid := humanid.WithSuffix(base, n)
		ok, err := taken(hid)
		if err != nil {
			return "", err
		}
		if !ok {
			return hid, nil
		}
	}
}

// GetNote returns the note if it exists and belongs to userID.
func (s *Store) GetNote(ctx context.Context, userID, noteID string) (*models.Note, error) {
	return getNote(ctx, s.db, userID, noteID)
}

func getNote(ctx context.Context, q queryer, userID, noteID string) (*models.Note, error) {
	return scanNote(q.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes n WHERE n.id = ? AND n.user_id = ?`, noteID, userID))
}

// GetNoteByHumanID looks a note up by its human-readable id.
func (s *Store) GetNoteByHumanID(ctx context.Context, userID, hid string) (*models.Note, error) {
	return scanNote(s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes n WHERE n.human_readable_id = ? AND n.user_id = ?`, hid, userID))
}

// Children returns the direct children of noteID, oldest first. A missing
// parent simply has no children.
func (s *Store) Children(ctx context.Context, userID, noteID string) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes n
		 WHERE n.parent_id = ? AND n.user_id = ?
		 ORDER BY n.created_at, n.rowid`,
		noteID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	return collectNotes(rows)
}

// UpdateNote rewrites the editable fields of a note. In one transaction it
// replaces the note's outgoing mentions with the distinct references found in
// content, recomputes the search text and clears the stored embedding so the
// note is selected for re-embedding. A nil ParentID leaves the parent alone,
// an empty one detaches the note.
func (s *Store) UpdateNote(ctx context.Context, userID, noteID string, upd models.NoteUpdate) (*models.Note, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := getNote(ctx, tx, userID, noteID)
	if err != nil {
		return nil, err
	}

	parentID := current.ParentID
	if upd.ParentID != nil {
		parentID = *upd.ParentID
		if parentID != "" && parentID != current.ParentID {
			if err := checkParent(ctx, tx, userID, noteID, parentID); err != nil {
				return nil, err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM mentions WHERE from_note = ?`, noteID); err != nil {
		return nil, fmt.Errorf("clear mentions: %w", err)
	}
	for _, target := range mention.Targets(upd.Content) {
		// Unknown targets and other users' notes produce no edge.
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO mentions (id, from_note, to_note)
			 SELECT ?, ?, id FROM notes WHERE id = ? AND user_id = ?`,
			uuid.New().String(), noteID, target, userID,
		)
		if err != nil {
			return nil, fmt.Errorf("insert mention %q: %w", target, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, metadata = ?, parent_id = NULLIF(?, ''), search_text = ?,
		 embedding = NULL, updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now')
		 WHERE id = ?`,
		upd.Title, upd.Content, upd.Metadata, parentID,
		models.BuildSearchText(upd.Title, upd.Content, upd.Metadata), noteID,
	)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	if current.HasEmbedding {
		if err := bumpEmbeddingRev(ctx, tx, userID); err != nil {
			return nil, err
		}
	}

	updated, err := getNote(ctx, tx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

// checkParent rejects parents that are missing, foreign, the note itself or
// one of its descendants.
func checkParent(ctx context.Context, q queryer, userID, noteID, parentID string) error {
	if parentID == noteID {
		return fmt.Errorf("note %q cannot be its own parent: %w", noteID, ErrInvalidParent)
	}
	if _, err := getNote(ctx, q, userID, parentID); err != nil {
		return fmt.Errorf("parent %q: %w", parentID, err)
	}
	ancestors, err := lineage(ctx, q, parentID)
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if a.ID == noteID {
			return fmt.Errorf("parent %q is a descendant of %q: %w", parentID, noteID, ErrInvalidParent)
		}
	}
	return nil
}

// DeleteNote removes a note, the canvas items placing it and every mention
// edge touching it. Children keep their now dangling parent id and UI state
// rows are left alone.
func (s *Store) DeleteNote(ctx context.Context, userID, noteID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	n, err := getNote(ctx, tx, userID, noteID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM canvas_items WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("delete canvas items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM mentions WHERE from_note = ? OR to_note = ?`, noteID, noteID); err != nil {
		return fmt.Errorf("delete mentions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, noteID); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n.HasEmbedding {
		if err := bumpEmbeddingRev(ctx, tx, userID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// MentionedBy returns the distinct notes whose content references noteID.
// Edges whose source has disappeared are skipped.
func (s *Store) MentionedBy(ctx context.Context, userID, noteID string) ([]models.Note, error) {
	if _, err := getNote(ctx, s.db, userID, noteID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes n
		 WHERE n.user_id = ? AND n.id IN (SELECT from_note FROM mentions WHERE to_note = ?)
		 ORDER BY n.created_at, n.rowid`,
		userID, noteID,
	)
	if err != nil {
		return nil, fmt.Errorf("query mentioned-by: %w", err)
	}
	return collectNotes(rows)
}

// Mentions returns the outgoing edges of noteID.
func (s *Store) Mentions(ctx context.Context, noteID string) ([]models.Mention, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_note, to_note FROM mentions WHERE from_note = ? ORDER BY rowid`, noteID)
	if err != nil {
		return nil, fmt.Errorf("query mentions: %w", err)
	}
	defer rows.Close()
	var out []models.Mention
	for rows.Next() {
		var m models.Mention
		if err := rows.Scan(&m.ID, &m.From, &m.To); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Lineage returns the ancestors of noteID, root first, without the note
// itself. The walk stops at a missing parent or a repeated id.
func (s *Store) Lineage(ctx context.Context, noteID string) ([]models.Note, error) {
	return lineage(ctx, s.db, noteID)
}

func lineage(ctx context.Context, q queryer, noteID string) ([]models.Note, error) {
	var chain []models.Note
	seen := map[string]bool{noteID: true}
	var parentID string
	err := q.QueryRowContext(ctx, `SELECT COALESCE(parent_id, '') FROM notes WHERE id = ?`, noteID).Scan(&parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %q: %w", noteID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup note: %w", err)
	}
	for parentID != "" && !seen[parentID] {
		seen[parentID] = true
		p, err := scanNote(q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes n WHERE n.id = ?`, parentID))
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, *p)
		parentID = p.ParentID
	}
	slices.Reverse(chain)
	return chain, nil
}
