package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/embedding"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

// EmbeddingEnabled reports whether an embedder is configured.
func (s *Service) EmbeddingEnabled() bool { return s.pipeline != nil }

// EmbedAll wakes the worker to drain every pending note. It does not wait.
func (s *Service) EmbedAll(ctx context.Context) error {
	if s.pipeline == nil {
		return ErrEmbeddingDisabled
	}
	s.pipeline.EmbedAll()
	return nil
}

// DrainEmbeddings embeds the whole backlog in the calling goroutine and
// returns how many notes were embedded.
func (s *Service) DrainEmbeddings(ctx context.Context) (int, error) {
	if s.pipeline == nil {
		return 0, ErrEmbeddingDisabled
	}
	return s.pipeline.Drain(ctx)
}

// EmbedNote computes the embedding of one note now.
func (s *Service) EmbedNote(ctx context.Context, userID, noteID string) error {
	if s.pipeline == nil {
		return ErrEmbeddingDisabled
	}
	if err := requireID("note", noteID); err != nil {
		return err
	}
	if _, err := s.store.GetNote(ctx, userID, noteID); err != nil {
		return err
	}
	return s.pipeline.EmbedNoteNow(ctx, noteID)
}

// RemoveAllEmbeddings clears every stored vector so all notes are embedded
// again, e.g. after the model or text format changes.
func (s *Service) RemoveAllEmbeddings(ctx context.Context) (int64, error) {
	if s.pipeline != nil {
		return s.pipeline.RemoveAll(ctx)
	}
	n, err := s.store.ClearEmbeddings(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("cleared", n).Msg("embeddings removed")
	return n, nil
}

// PipelineStatus reports the embedding worker state.
func (s *Service) PipelineStatus() embedding.Status {
	if s.pipeline == nil {
		return embedding.Status{State: "disabled"}
	}
	return s.pipeline.Status()
}

// SimilarNotes returns the notes nearest to noteID's embedding, without
// noteID itself. A note that has no embedding yet has no neighbours.
func (s *Service) SimilarNotes(ctx context.Context, userID, noteID string, limit int) ([]models.Note, error) {
	if err := requireID("note", noteID); err != nil {
		return nil, err
	}
	vec, err := s.store.NoteEmbedding(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if vec == nil {
		return []models.Note{}, nil
	}
	limit = clampLimit(limit, s.cfg.SimilarLimit)
	// Ask for one extra so the limit still holds after dropping the note.
	notes, err := s.nearest(ctx, userID, vec, limit+1)
	if err != nil {
		return nil, err
	}
	out := make([]models.Note, 0, limit)
	for _, n := range notes {
		if n.ID == noteID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, n)
	}
	return out, nil
}

// SimilarToText embeds text and returns the nearest notes.
func (s *Service) SimilarToText(ctx context.Context, userID, text string, limit int) ([]models.Note, error) {
	if strings.TrimSpace(text) == "" {
		return []models.Note{}, nil
	}
	if s.embedder == nil {
		return nil, ErrEmbeddingDisabled
	}
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	return s.nearest(ctx, userID, vecs[0], clampLimit(limit, s.cfg.SimilarLimit))
}

func (s *Service) nearest(ctx context.Context, userID string, vec []float32, k int) ([]models.Note, error) {
	s.metrics.RecordSearch("vector")
	ids, err := s.index.Search(ctx, userID, vec, k)
	if err != nil {
		return nil, err
	}
	return s.store.NotesByIDs(ctx, userID, ids)
}
