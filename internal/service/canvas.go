package service

import (
	"context"
	"fmt"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/events"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/geom"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

func requireFinite(what string, v geom.Vec) error {
	if !v.Finite() {
		return fmt.Errorf("%s %v is not finite: %w", what, v, ErrInvalidInput)
	}
	return nil
}

// Canvas returns the user's canvas, creating it on first use.
func (s *Service) Canvas(ctx context.Context, userID string) (*models.CanvasView, error) {
	return s.store.Canvas(ctx, userID)
}

// SetOrigin persists the pan offset of a canvas.
func (s *Service) SetOrigin(ctx context.Context, userID, canvasID string, origin geom.Vec) error {
	if err := requireID("canvas", canvasID); err != nil {
		return err
	}
	if err := requireFinite("origin", origin); err != nil {
		return err
	}
	if err := s.store.SetOrigin(ctx, userID, canvasID, origin); err != nil {
		return err
	}
	s.publish(userID, events.CanvasMoved, events.Event{CanvasID: canvasID})
	return nil
}

// CreateNoteOnCanvas creates an empty note placed at pos.
func (s *Service) CreateNoteOnCanvas(ctx context.Context, userID, canvasID string, pos geom.Vec) (*models.CanvasItem, *models.Note, error) {
	if err := requireID("canvas", canvasID); err != nil {
		return nil, nil, err
	}
	if err := requireFinite("position", pos); err != nil {
		return nil, nil, err
	}
	item, note, err := s.store.CreateNoteOnCanvas(ctx, userID, canvasID, pos)
	if err != nil {
		return nil, nil, err
	}
	s.publish(userID, events.NoteCreated, events.Event{NoteID: note.ID})
	s.publish(userID, events.ItemAdded, events.Event{CanvasID: canvasID, ItemID: item.ID, NoteID: note.ID})
	return item, note, nil
}

// AddNoteToCanvas places an existing note at pos.
func (s *Service) AddNoteToCanvas(ctx context.Context, userID, canvasID, noteID string, pos geom.Vec) (*models.CanvasItem, error) {
	if err := requireID("canvas", canvasID); err != nil {
		return nil, err
	}
	if err := requireID("note", noteID); err != nil {
		return nil, err
	}
	if err := requireFinite("position", pos); err != nil {
		return nil, err
	}
	item, err := s.store.AddNoteToCanvas(ctx, userID, canvasID, noteID, pos)
	if err != nil {
		return nil, err
	}
	s.publish(userID, events.ItemAdded, events.Event{CanvasID: canvasID, ItemID: item.ID, NoteID: noteID})
	return item, nil
}

// Item returns one placement.
func (s *Service) Item(ctx context.Context, userID, itemID string) (*models.CanvasItem, error) {
	if err := requireID("item", itemID); err != nil {
		return nil, err
	}
	return s.store.Item(ctx, userID, itemID)
}

// SetPosition moves a placement.
func (s *Service) SetPosition(ctx context.Context, userID, itemID string, pos geom.Vec) error {
	if err := requireID("item", itemID); err != nil {
		return err
	}
	if err := requireFinite("position", pos); err != nil {
		return err
	}
	if err := s.store.SetPosition(ctx, userID, itemID, pos); err != nil {
		return err
	}
	s.publish(userID, events.ItemMoved, events.Event{ItemID: itemID})
	return nil
}

// RemoveItem takes a placement off the canvas without deleting its note.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) error {
	if err := requireID("item", itemID); err != nil {
		return err
	}
	if err := s.store.RemoveItem(ctx, userID, itemID); err != nil {
		return err
	}
	s.publish(userID, events.ItemRemoved, events.Event{ItemID: itemID})
	return nil
}

// Collapsed reports the collapse flag of noteID under a placement.
func (s *Service) Collapsed(ctx context.Context, userID, noteID, itemID string) (bool, error) {
	if err := requireID("note", noteID); err != nil {
		return false, err
	}
	if err := requireID("item", itemID); err != nil {
		return false, err
	}
	return s.store.Collapsed(ctx, userID, noteID, itemID)
}

// SetCollapsed stores the collapse flag and returns it.
func (s *Service) SetCollapsed(ctx context.Context, userID, noteID, itemID string, collapsed bool) (bool, error) {
	if err := requireID("note", noteID); err != nil {
		return false, err
	}
	if err := requireID("item", itemID); err != nil {
		return false, err
	}
	if err := s.store.SetCollapsed(ctx, userID, noteID, itemID, collapsed); err != nil {
		return false, err
	}
	s.publish(userID, events.UIStateChanged, events.Event{NoteID: noteID, ItemID: itemID})
	return collapsed, nil
}
