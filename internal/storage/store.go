package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

var (
	// ErrNotFound is returned when an entity does not exist or is not visible
	// to the requesting user.
	ErrNotFound = errors.New("not found")
	// ErrInvalidParent is returned when a parent assignment would break the
	// note forest.
	ErrInvalidParent = errors.New("invalid parent")
)

// Store is the authoritative store for users, notes, canvases and their
// derived indexes.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", "file:"+path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	if _, err := db.Exec(Triggers); err != nil {
		db.Close()
		return nil, fmt.Errorf("create triggers: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertUser returns the user for subject, creating it on first sight. A
// non-empty name replaces the stored one.
func (s *Store) UpsertUser(ctx context.Context, subject, name string) (*models.User, error) {
	if subject == "" {
		return nil, fmt.Errorf("upsert user: empty subject")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, subject, name) VALUES (?, ?, ?)
		 ON CONFLICT(subject) DO UPDATE SET name = excluded.name WHERE excluded.name != ''`,
		uuid.New().String(), subject, name,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user %q: %w", subject, err)
	}
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, subject, name, created_at FROM users WHERE subject = ?`, subject))
}

// GetUser looks up a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, subject, name, created_at FROM users WHERE id = ?`, id))
}

// ListUserIDs returns every user id.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Subject, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
