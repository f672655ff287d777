package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hack-pad/hackpadfs"
	osfs "github.com/hack-pad/hackpadfs/os"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/auth"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/config"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/embedding"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/events"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/logger"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/metrics"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/service"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/storage"
)

// app holds everything a command needs.
type app struct {
	cfg      config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	store    *storage.Store
	hub      *events.Hub
	svc      *service.Service
	verifier *auth.StaticVerifier
}

func newApp(cli *CLI) (*app, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.Debug {
		cfg.Log.Level = "debug"
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	indexFS, err := openIndexFS(cfg.Index.Dir)
	if err != nil {
		store.Close()
		return nil, err
	}

	policy, err := embedding.ParseFailurePolicy(cfg.Embedding.FailurePolicy)
	if err != nil {
		store.Close()
		return nil, err
	}

	var embedder embedding.Embedder
	if cfg.Embedding.Enabled() {
		oa := embedding.NewOpenAI(cfg.Embedding.APIKey)
		oa.BaseURL = cfg.Embedding.BaseURL
		oa.Model = cfg.Embedding.Model
		oa.HTTPClient.Timeout = cfg.Embedding.Timeout
		embedder = oa
	} else {
		log.Zerolog().Info().Msg("no embedding API key configured; semantic search disabled")
	}

	m := metrics.New()
	hub := events.NewHub(m)
	svc := service.New(store, embedder, hub, service.Config{
		SearchLimit:  cfg.Server.SearchLimit,
		RecentLimit:  cfg.Server.RecentLimit,
		SimilarLimit: cfg.Server.SimilarLimit,
		Pipeline: embedding.Options{
			BatchSize:  cfg.Embedding.BatchSize,
			Dimensions: cfg.Embedding.Dimensions,
			Policy:     policy,
			MaxRetries: cfg.Embedding.MaxRetries,
			MinBackoff: cfg.Embedding.MinBackoff,
			MaxBackoff: cfg.Embedding.MaxBackoff,
		},
		IndexFS: indexFS,
	}, log.Component("service"), m)

	tokens := make(map[string]auth.Principal, len(cfg.Auth.Tokens))
	for _, t := range cfg.Auth.Tokens {
		tokens[t.Token] = auth.Principal{Subject: t.Subject, Name: t.Name}
	}

	return &app{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		store:    store,
		hub:      hub,
		svc:      svc,
		verifier: auth.NewStaticVerifier(tokens),
	}, nil
}

// openIndexFS roots a hackpadfs view at dir. An empty dir keeps vector
// indexes in memory.
func openIndexFS(dir string) (hackpadfs.FS, error) {
	if dir == "" {
		return nil, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve index dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	// hackpadfs paths are slash separated and relative to the volume root.
	rel := strings.TrimPrefix(filepath.ToSlash(abs), "/")
	fsys, err := osfs.NewFS().Sub(rel)
	if err != nil {
		return nil, fmt.Errorf("open index dir: %w", err)
	}
	return fsys, nil
}

func (a *app) runPipeline(ctx context.Context) {
	if err := a.svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Zerolog().Error().Err(err).Msg("embedding pipeline stopped")
	}
}

func (a *app) drain(ctx context.Context) error {
	n, err := a.svc.DrainEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("embed notes: %w", err)
	}
	fmt.Printf("Embedded %d notes.\n", n)
	return nil
}

func (a *app) Close() {
	a.hub.Close()
	if err := a.store.Close(); err != nil {
		a.log.Zerolog().Warn().Err(err).Msg("close store")
	}
}
