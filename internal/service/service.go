// Package service implements the backend operations of the canvas: notes,
// canvases, search and embeddings. Every method takes the caller's user id
// explicitly; nothing is read from ambient state. Mutations publish change
// events and notes are queued for embedding after they change.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hack-pad/hackpadfs"
	"github.com/rs/zerolog"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/embedding"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/events"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/metrics"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/storage"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/vecindex"
)

var (
	// ErrInvalidInput marks arguments the service refuses before touching
	// the store.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbeddingDisabled is returned by embedding operations when no
	// embedding service is configured.
	ErrEmbeddingDisabled = errors.New("embedding service not configured")
)

// Config tunes result sizes and the embedding worker.
type Config struct {
	SearchLimit  int
	RecentLimit  int
	SimilarLimit int
	Pipeline     embedding.Options
	// IndexFS receives vector index snapshots. Nil keeps them in memory.
	IndexFS hackpadfs.FS
}

// Service is the single entry point used by the MCP tools and the REST API.
type Service struct {
	store    *storage.Store
	embedder embedding.Embedder
	pipeline *embedding.Pipeline
	index    *vecindex.Manager
	hub      *events.Hub
	metrics  *metrics.Metrics
	log      zerolog.Logger
	cfg      Config
}

// New wires a service. embedder may be nil, which disables the pipeline and
// similarity search.
func New(store *storage.Store, embedder embedding.Embedder, hub *events.Hub, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Service {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 20
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 20
	}
	if cfg.SimilarLimit <= 0 {
		cfg.SimilarLimit = 20
	}
	s := &Service{
		store:    store,
		embedder: embedder,
		hub:      hub,
		metrics:  m,
		log:      log,
		cfg:      cfg,
	}
	s.index = vecindex.NewManager(store, vecindex.Options{
		FS:      cfg.IndexFS,
		Logger:  log.With().Str("component", "vecindex").Logger(),
		Metrics: m,
	})
	if embedder != nil {
		opts := cfg.Pipeline
		opts.Logger = log.With().Str("component", "embedding").Logger()
		opts.Metrics = m
		opts.OnEmbedded = s.notifyEmbedded
		s.pipeline = embedding.New(store, embedder, opts)
	}
	return s
}

// Run runs the embedding worker until ctx is cancelled. It kicks off one
// drain at start so notes written while the server was down get embedded.
func (s *Service) Run(ctx context.Context) error {
	if s.pipeline == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	s.pipeline.EmbedAll()
	return s.pipeline.Run(ctx)
}

// Store exposes the underlying store to the identity layer.
func (s *Service) Store() *storage.Store { return s.store }

// Hub exposes the change feed.
func (s *Service) Hub() *events.Hub { return s.hub }

func (s *Service) publish(userID string, t events.Type, e events.Event) {
	e.Type = t
	e.UserID = userID
	s.hub.Publish(e)
}

func (s *Service) notifyEmbedded(noteIDs []string) {
	ctx := context.Background()
	for _, id := range noteIDs {
		n, err := s.store.NoteForEmbedding(ctx, id)
		if err != nil {
			continue
		}
		s.publish(n.UserID, events.EmbeddingUpdated, events.Event{NoteID: id})
	}
}

func clampLimit(limit, def int) int {
	if limit <= 0 || limit > def {
		return def
	}
	return limit
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id is required: %w", kind, ErrInvalidInput)
	}
	return nil
}

// Subscribe streams change events for userID until cancel is called.
func (s *Service) Subscribe(userID string) (<-chan events.Event, func()) {
	return s.hub.Subscribe(userID)
}
