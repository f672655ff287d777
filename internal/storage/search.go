package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

// ftsQuery turns free text into an FTS5 expression: every whitespace
// separated term is quoted and must match, the last one as a prefix so
// results follow the user while they type. It returns "" when text has no
// terms.
func ftsQuery(text string) string {
	terms := strings.Fields(text)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	quoted[len(quoted)-1] += "*"
	return strings.Join(quoted, " ")
}

// Search performs FTS5 full-text search over the owner's search text and
// returns at most limit notes, best match first. A blank query matches
// nothing.
func (s *Store) Search(ctx context.Context, userID, query string, limit int) ([]models.Note, error) {
	match := ftsQuery(query)
	if match == "" || limit <= 0 {
		return []models.Note{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes n
		 JOIN notes_fts ON notes_fts.rowid = n.rowid
		 WHERE notes_fts MATCH ? AND n.user_id = ?
		 ORDER BY notes_fts.rank
		 LIMIT ?`,
		match, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search notes fts: %w", err)
	}
	notes, err := collectNotes(rows)
	if notes == nil && err == nil {
		notes = []models.Note{}
	}
	return notes, err
}

// Recent returns the owner's most recently created notes, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes n
		 WHERE n.user_id = ?
		 ORDER BY n.created_at DESC, n.rowid DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent notes: %w", err)
	}
	notes, err := collectNotes(rows)
	if notes == nil && err == nil {
		notes = []models.Note{}
	}
	return notes, err
}

// SearchOrRecent searches when query has terms and otherwise falls back to
// the most recent notes.
func (s *Store) SearchOrRecent(ctx context.Context, userID, query string, limit int) ([]models.Note, error) {
	if strings.TrimSpace(query) == "" {
		return s.Recent(ctx, userID, limit)
	}
	return s.Search(ctx, userID, query, limit)
}
