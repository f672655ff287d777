package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/service"
)

// SearchTools holds references needed by search and embedding tool handlers.
type SearchTools struct {
	Svc    *service.Service
	UserID string
}

// --- Input types ---

type SearchNotesInput struct {
	Query string `json:"query" jsonschema:"Words to look for; the last word matches as a prefix"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default and cap 20)"`
}

type RecentNotesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of results (default and cap 20)"`
}

type SimilarNotesInput struct {
	ID    string `json:"id,omitempty" jsonschema:"Find notes similar to this note"`
	Query string `json:"query,omitempty" jsonschema:"Find notes similar to this text (used when id is empty)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default and cap 20)"`
}

type EmbedAllInput struct{}

type GenerateEmbeddingInput struct {
	ID string `json:"id" jsonschema:"Note id"`
}

// --- Handlers ---

func (t *SearchTools) SearchNotes(ctx context.Context, _ *mcp.CallToolRequest, input SearchNotesInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return toolError("Search query is required"), nil, nil
	}
	notes, err := t.Svc.Search(ctx, t.UserID, input.Query, input.Limit)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	return toolJSON(summarize(notes))
}

func (t *SearchTools) SearchOrRecent(ctx context.Context, _ *mcp.CallToolRequest, input SearchNotesInput) (*mcp.CallToolResult, any, error) {
	notes, err := t.Svc.SearchOrRecent(ctx, t.UserID, input.Query, input.Limit)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	return toolJSON(summarize(notes))
}

func (t *SearchTools) RecentNotes(ctx context.Context, _ *mcp.CallToolRequest, input RecentNotesInput) (*mcp.CallToolResult, any, error) {
	notes, err := t.Svc.Recent(ctx, t.UserID, input.Limit)
	if err != nil {
		return toolError("Failed to list recent notes: %v", err), nil, nil
	}
	return toolJSON(summarize(notes))
}

func (t *SearchTools) SimilarNotes(ctx context.Context, _ *mcp.CallToolRequest, input SimilarNotesInput) (*mcp.CallToolResult, any, error) {
	var (
		notes []models.Note
		err   error
	)
	switch {
	case input.ID != "":
		notes, err = t.Svc.SimilarNotes(ctx, t.UserID, input.ID, input.Limit)
	case input.Query != "":
		notes, err = t.Svc.SimilarToText(ctx, t.UserID, input.Query, input.Limit)
	default:
		return toolError("Either id or query is required"), nil, nil
	}
	if err != nil {
		return toolError("Similarity search failed: %v", err), nil, nil
	}
	return toolJSON(summarize(notes))
}

func (t *SearchTools) EmbedAllPending(ctx context.Context, _ *mcp.CallToolRequest, _ EmbedAllInput) (*mcp.CallToolResult, any, error) {
	if err := t.Svc.EmbedAll(ctx); err != nil {
		return toolError("Failed to start embedding: %v", err), nil, nil
	}
	st := t.Svc.PipelineStatus()
	return toolText(fmt.Sprintf("Embedding of pending notes started (worker %s).", st.State)), nil, nil
}

func (t *SearchTools) GenerateEmbedding(ctx context.Context, _ *mcp.CallToolRequest, input GenerateEmbeddingInput) (*mcp.CallToolResult, any, error) {
	err := t.Svc.EmbedNote(ctx, t.UserID, input.ID)
	if errors.Is(err, service.ErrEmbeddingDisabled) {
		return toolError("Embeddings are disabled: no API key configured"), nil, nil
	}
	if err != nil {
		return toolError("Failed to embed note: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Embedding generated for note %s.", input.ID)), nil, nil
}
