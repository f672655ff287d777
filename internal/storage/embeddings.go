package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

// encodeEmbedding packs a vector as little-endian float32s.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func bumpEmbeddingRev(ctx context.Context, q queryer, userID string) error {
	if _, err := q.ExecContext(ctx, `UPDATE users SET embedding_rev = embedding_rev + 1 WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("bump embedding rev: %w", err)
	}
	return nil
}

// NotesNeedingEmbedding returns up to limit ids of notes, across all users,
// that have no embedding and are not entirely empty. Oldest notes come first.
func (s *Store) NotesNeedingEmbedding(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM notes
		 WHERE embedding IS NULL AND NOT (title = '' AND content = '' AND metadata = '')
		 ORDER BY created_at, rowid
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query notes needing embedding: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan note id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NoteForEmbedding loads a note regardless of owner, for the background
// pipeline.
func (s *Store) NoteForEmbedding(ctx context.Context, noteID string) (*models.Note, error) {
	return scanNote(s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes n WHERE n.id = ?`, noteID))
}

// StoreEmbedding saves the vector of a note. A note deleted in the meantime
// is ignored.
func (s *Store) StoreEmbedding(ctx context.Context, noteID string, vec []float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx,
		`UPDATE notes SET embedding = ? WHERE id = ? RETURNING user_id`,
		encodeEmbedding(vec), noteID,
	).Scan(&userID)
	if err != nil {
		if isNoRows(err) {
			return nil
		}
		return fmt.Errorf("store embedding for %q: %w", noteID, err)
	}
	if err := bumpEmbeddingRev(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ClearEmbeddings removes every stored embedding and returns how many were
// cleared.
func (s *Store) ClearEmbeddings(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET embedding_rev = embedding_rev + 1
		 WHERE id IN (SELECT DISTINCT user_id FROM notes WHERE embedding IS NOT NULL)`); err != nil {
		return 0, fmt.Errorf("bump embedding revs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE notes SET embedding = NULL WHERE embedding IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("clear embeddings: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// NoteEmbedding returns the stored vector of a note owned by userID, or nil
// when it has not been embedded yet.
func (s *Store) NoteEmbedding(ctx context.Context, userID, noteID string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding FROM notes WHERE id = ? AND user_id = ?`, noteID, userID,
	).Scan(&blob)
	if isNoRows(err) {
		return nil, fmt.Errorf("note %q: %w", noteID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	if blob == nil {
		return nil, nil
	}
	return decodeEmbedding(blob)
}

// EmbeddingRev returns a counter that changes whenever any embedding of the
// user changes.
func (s *Store) EmbeddingRev(ctx context.Context, userID string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT embedding_rev FROM users WHERE id = ?`, userID).Scan(&rev)
	if isNoRows(err) {
		return 0, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query embedding rev: %w", err)
	}
	return rev, nil
}

// EmbeddingSet is a snapshot of one user's vectors.
type EmbeddingSet struct {
	Rev     int64
	NoteIDs []string
	Vectors [][]float32
}

// UserEmbeddings loads every embedded note of userID together with the
// revision they were read at.
func (s *Store) UserEmbeddings(ctx context.Context, userID string) (*EmbeddingSet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	set := &EmbeddingSet{}
	err = tx.QueryRowContext(ctx, `SELECT embedding_rev FROM users WHERE id = ?`, userID).Scan(&set.Rev)
	if isNoRows(err) {
		return nil, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding rev: %w", err)
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, embedding FROM notes WHERE user_id = ? AND embedding IS NOT NULL ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		v, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("note %q: %w", id, err)
		}
		set.NoteIDs = append(set.NoteIDs, id)
		set.Vectors = append(set.Vectors, v)
	}
	return set, rows.Err()
}

// NotesByIDs loads the given notes of userID in the order of ids. Ids that
// do not resolve are skipped.
func (s *Store) NotesByIDs(ctx context.Context, userID string, ids []string) ([]models.Note, error) {
	if len(ids) == 0 {
		return []models.Note{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT `+noteColumns+` FROM notes n WHERE n.user_id = ? AND n.id IN (%s)`, strings.Join(placeholders, ",")),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	found, err := collectNotes(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Note, len(found))
	for _, n := range found {
		byID[n.ID] = n
	}
	out := make([]models.Note, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}
