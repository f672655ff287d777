package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/geom"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

// Canvas returns the user's canvas with its items, creating the canvas on
// first access. Items whose note has vanished are omitted.
func (s *Store) Canvas(ctx context.Context, userID string) (*models.CanvasView, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO canvases (id, user_id) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING`,
		uuid.New().String(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("create canvas: %w", err)
	}
	var v models.CanvasView
	err = s.db.QueryRowContext(ctx,
		`SELECT id, user_id, origin_x, origin_y FROM canvases WHERE user_id = ?`, userID,
	).Scan(&v.ID, &v.UserID, &v.Origin.X, &v.Origin.Y)
	if err != nil {
		return nil, fmt.Errorf("load canvas: %w", err)
	}
	v.Items, err = s.items(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CanvasByID returns a canvas owned by userID.
func (s *Store) CanvasByID(ctx context.Context, userID, canvasID string) (*models.CanvasView, error) {
	c, err := getCanvas(ctx, s.db, userID, canvasID)
	if err != nil {
		return nil, err
	}
	v := models.CanvasView{Canvas: *c}
	v.Items, err = s.items(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func getCanvas(ctx context.Context, q queryer, userID, canvasID string) (*models.Canvas, error) {
	var c models.Canvas
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, origin_x, origin_y FROM canvases WHERE id = ? AND user_id = ?`, canvasID, userID,
	).Scan(&c.ID, &c.UserID, &c.Origin.X, &c.Origin.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("canvas %q: %w", canvasID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan canvas: %w", err)
	}
	return &c, nil
}

func (s *Store) items(ctx context.Context, canvasID string) ([]models.CanvasItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ci.id, ci.canvas_id, ci.note_id, ci.x, ci.y FROM canvas_items ci
		 JOIN notes n ON n.id = ci.note_id
		 WHERE ci.canvas_id = ?
		 ORDER BY ci.created_at, ci.rowid`,
		canvasID,
	)
	if err != nil {
		return nil, fmt.Errorf("query canvas items: %w", err)
	}
	defer rows.Close()
	items := []models.CanvasItem{}
	for rows.Next() {
		var it models.CanvasItem
		if err := rows.Scan(&it.ID, &it.CanvasID, &it.NoteID, &it.Position.X, &it.Position.Y); err != nil {
			return nil, fmt.Errorf("scan canvas item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SetOrigin persists the pan offset of a canvas.
func (s *Store) SetOrigin(ctx context.Context, userID, canvasID string, origin geom.Vec) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE canvases SET origin_x = ?, origin_y = ? WHERE id = ? AND user_id = ?`,
		origin.X, origin.Y, canvasID, userID,
	)
	if err != nil {
		return fmt.Errorf("set origin: %w", err)
	}
	return expectOne(res, "canvas", canvasID)
}

// AddNoteToCanvas places an existing note on a canvas.
func (s *Store) AddNoteToCanvas(ctx context.Context, userID, canvasID, noteID string, pos geom.Vec) (*models.CanvasItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := getCanvas(ctx, tx, userID, canvasID); err != nil {
		return nil, err
	}
	if _, err := getNote(ctx, tx, userID, noteID); err != nil {
		return nil, err
	}
	item, err := insertItem(ctx, tx, canvasID, noteID, pos)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return item, nil
}

// CreateNoteOnCanvas creates an empty root note and places it at pos.
func (s *Store) CreateNoteOnCanvas(ctx context.Context, userID, canvasID string, pos geom.Vec) (*models.CanvasItem, *models.Note, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := getCanvas(ctx, tx, userID, canvasID); err != nil {
		return nil, nil, err
	}
	note, err := createNote(ctx, tx, userID, "")
	if err != nil {
		return nil, nil, err
	}
	item, err := insertItem(ctx, tx, canvasID, note.ID, pos)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return item, note, nil
}

func insertItem(ctx context.Context, q queryer, canvasID, noteID string, pos geom.Vec) (*models.CanvasItem, error) {
	if !pos.Finite() {
		return nil, fmt.Errorf("insert canvas item: position %v is not finite", pos)
	}
	id := uuid.New().String()
	_, err := q.ExecContext(ctx,
		`INSERT INTO canvas_items (id, canvas_id, note_id, x, y) VALUES (?, ?, ?, ?, ?)`,
		id, canvasID, noteID, pos.X, pos.Y,
	)
	if err != nil {
		return nil, fmt.Errorf("insert canvas item: %w", err)
	}
	return &models.CanvasItem{ID: id, CanvasID: canvasID, NoteID: noteID, Position: pos}, nil
}

// Item returns a canvas item on one of userID's canvases.
func (s *Store) Item(ctx context.Context, userID, itemID string) (*models.CanvasItem, error) {
	var it models.CanvasItem
	err := s.db.QueryRowContext(ctx,
		`SELECT ci.id, ci.canvas_id, ci.note_id, ci.x, ci.y FROM canvas_items ci
		 JOIN canvases c ON c.id = ci.canvas_id
		 WHERE ci.id = ? AND c.user_id = ?`,
		itemID, userID,
	).Scan(&it.ID, &it.CanvasID, &it.NoteID, &it.Position.X, &it.Position.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("canvas item %q: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan canvas item: %w", err)
	}
	return &it, nil
}

// SetPosition moves a canvas item.
func (s *Store) SetPosition(ctx context.Context, userID, itemID string, pos geom.Vec) error {
	if !pos.Finite() {
		return fmt.Errorf("set position: %v is not finite", pos)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE canvas_items SET x = ?, y = ?
		 WHERE id = ? AND canvas_id IN (SELECT id FROM canvases WHERE user_id = ?)`,
		pos.X, pos.Y, itemID, userID,
	)
	if err != nil {
		return fmt.Errorf("set position: %w", err)
	}
	return expectOne(res, "canvas item", itemID)
}

// RemoveItem takes an item off its canvas. The note is kept.
func (s *Store) RemoveItem(ctx context.Context, userID, itemID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM canvas_items
		 WHERE id = ? AND canvas_id IN (SELECT id FROM canvases WHERE user_id = ?)`,
		itemID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove canvas item: %w", err)
	}
	return expectOne(res, "canvas item", itemID)
}

// ItemsForNote returns the ids of the items placing noteID.
func (s *Store) ItemsForNote(ctx context.Context, noteID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM canvas_items WHERE note_id = ? ORDER BY rowid`, noteID)
	if err != nil {
		return nil, fmt.Errorf("query items for note: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	return nil
}
