package service

import (
	"context"
	"strings"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/events"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

// GetNote returns a note owned by userID. An empty id is not an error: it
// yields nil, so callers holding an optional reference need no branch.
func (s *Service) GetNote(ctx context.Context, userID, noteID string) (*models.Note, error) {
	if noteID == "" {
		return nil, nil
	}
	return s.store.GetNote(ctx, userID, noteID)
}

// GetNoteByHumanID looks a note up by its adjective-noun id.
func (s *Service) GetNoteByHumanID(ctx context.Context, userID, hid string) (*models.Note, error) {
	if err := requireID("human readable", hid); err != nil {
		return nil, err
	}
	return s.store.GetNoteByHumanID(ctx, userID, strings.TrimPrefix(hid, "@"))
}

// Children returns the direct children of noteID.
func (s *Service) Children(ctx context.Context, userID, noteID string) ([]models.Note, error) {
	if err := requireID("note", noteID); err != nil {
		return nil, err
	}
	return s.store.Children(ctx, userID, noteID)
}

// CreateNote creates an empty root note.
func (s *Service) CreateNote(ctx context.Context, userID string) (*models.Note, error) {
	n, err := s.store.CreateNote(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	s.publish(userID, events.NoteCreated, events.Event{NoteID: n.ID})
	return n, nil
}

// CreateChild creates an empty note under parentID, which must belong to
// userID.
func (s *Service) CreateChild(ctx context.Context, userID, parentID string) (*models.Note, error) {
	if err := requireID("parent", parentID); err != nil {
		return nil, err
	}
	n, err := s.store.CreateNote(ctx, userID, parentID)
	if err != nil {
		return nil, err
	}
	s.publish(userID, events.NoteCreated, events.Event{NoteID: n.ID})
	return n, nil
}

// UpdateNote writes all fields, rebuilds mentions and search text, and
// queues the note for embedding without waiting for it.
func (s *Service) UpdateNote(ctx context.Context, userID, noteID string, upd models.NoteUpdate) (*models.Note, error) {
	if err := requireID("note", noteID); err != nil {
		return nil, err
	}
	n, err := s.store.UpdateNote(ctx, userID, noteID, upd)
	if err != nil {
		return nil, err
	}
	s.publish(userID, events.NoteUpdated, events.Event{NoteID: n.ID})
	if s.pipeline != nil && !n.Empty() {
		s.pipeline.EmbedNote(n.ID)
	}
	return n, nil
}

// DeleteNote deletes a note with its placements and mention edges.
// Children keep their now dangling parent id.
func (s *Service) DeleteNote(ctx context.Context, userID, noteID string) error {
	if err := requireID("note", noteID); err != nil {
		return err
	}
	if _, err := s.store.GetNote(ctx, userID, noteID); err != nil {
		return err
	}
	items, err := s.store.ItemsForNote(ctx, noteID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, userID, noteID); err != nil {
		return err
	}
	for _, it := range items {
		s.publish(userID, events.ItemRemoved, events.Event{ItemID: it, NoteID: noteID})
	}
	s.publish(userID, events.NoteDeleted, events.Event{NoteID: noteID})
	return nil
}

// MentionedBy returns the distinct notes whose content mentions noteID.
func (s *Service) MentionedBy(ctx context.Context, userID, noteID string) ([]models.Note, error) {
	if err := requireID("note", noteID); err != nil {
		return nil, err
	}
	notes, err := s.store.MentionedBy(ctx, userID, noteID)
	if notes == nil && err == nil {
		notes = []models.Note{}
	}
	return notes, err
}

// Search runs the exact text search. A blank query returns no notes.
func (s *Service) Search(ctx context.Context, userID, query string, limit int) ([]models.Note, error) {
	s.metrics.RecordSearch("text")
	return s.store.Search(ctx, userID, query, clampLimit(limit, s.cfg.SearchLimit))
}

// SearchOrRecent searches, or lists recent notes when query is blank.
func (s *Service) SearchOrRecent(ctx context.Context, userID, query string, limit int) ([]models.Note, error) {
	if strings.TrimSpace(query) == "" {
		return s.Recent(ctx, userID, limit)
	}
	return s.Search(ctx, userID, query, limit)
}

// Recent lists the most recently created notes.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]models.Note, error) {
	s.metrics.RecordSearch("recent")
	notes, err := s.store.Recent(ctx, userID, clampLimit(limit, s.cfg.RecentLimit))
	if notes == nil && err == nil {
		notes = []models.Note{}
	}
	return notes, err
}
