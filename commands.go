package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/httpapi"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/server"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/service"
)

// ServeCmd runs the server on one transport.
type ServeCmd struct {
	Transport string `enum:"stdio,http" default:"stdio" help:"Transport mode: stdio or http."`
	Addr      string `help:"HTTP listen address, overrides server.addr."`
}

// Run serves until SIGINT or SIGTERM.
func (cmd *ServeCmd) Run(cli *CLI) error {
	a, err := newApp(cli)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cmd.Transport {
	case "stdio":
		return cmd.serveStdio(ctx, a)
	default:
		if cmd.Addr != "" {
			a.cfg.Server.Addr = cmd.Addr
		}
		return cmd.serveHTTP(ctx, a)
	}
}

func (cmd *ServeCmd) serveStdio(ctx context.Context, a *app) error {
	u, err := a.store.UpsertUser(ctx, a.cfg.Auth.StdioSubject, "")
	if err != nil {
		return fmt.Errorf("resolve stdio user: %w", err)
	}
	go a.runPipeline(ctx)

	// stdout carries the protocol, so logs stay on stderr.
	a.log.Zerolog().Info().Str("transport", "stdio").Str("subject", u.Subject).Msg("canvas MCP server starting")
	srv := server.New(a.svc, u.ID, a.metrics)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func (cmd *ServeCmd) serveHTTP(ctx context.Context, a *app) error {
	if a.verifier.Len() == 0 {
		a.log.Zerolog().Warn().Msg("no auth tokens configured; every request will be rejected")
	}
	handler := httpapi.New(httpapi.Options{
		Service:              a.svc,
		Servers:              server.NewServers(a.svc, a.metrics),
		Verifier:             a.verifier,
		Metrics:              a.metrics,
		Logger:               a.log,
		BaseURL:              a.cfg.Server.BaseURL,
		AuthorizationServers: a.cfg.Auth.AuthorizationServers,
	})
	httpServer := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	go a.runPipeline(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.log.LogServerStart(httpServer.Addr, a.cfg.Database.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.LogServerShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Websocket feeds are hijacked and not tracked by Shutdown.
	a.hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// EmbedCmd drains the embedding backlog once.
type EmbedCmd struct{}

func (cmd *EmbedCmd) Run(cli *CLI) error {
	a, err := newApp(cli)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.drain(context.Background())
}

// ReembedCmd clears every embedding before draining.
type ReembedCmd struct {
	Yes bool `short:"y" help:"Do not ask for confirmation."`
}

func (cmd *ReembedCmd) Run(cli *CLI) error {
	if !cmd.Yes {
		return errors.New("reembed drops every stored embedding; rerun with --yes to confirm")
	}
	a, err := newApp(cli)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.svc.EmbeddingEnabled() {
		return service.ErrEmbeddingDisabled
	}
	ctx := context.Background()
	n, err := a.svc.RemoveAllEmbeddings(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Cleared %d embeddings.\n", n)
	return a.drain(ctx)
}
