package server

import (
	"context"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/metrics"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/service"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/tools"
)

// Version is reported to MCP clients.
var Version = "0.1.0"

// addTool registers a handler and counts its calls.
func addTool[In any](srv *mcp.Server, m *metrics.Metrics, tool *mcp.Tool, h mcp.ToolHandlerFor[In, any]) {
	mcp.AddTool(srv, tool, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		res, out, err := h(ctx, req, in)
		m.RecordToolCall(tool.Name, err != nil || (res != nil && res.IsError))
		return res, out, err
	})
}

// New creates a fully configured MCP server with all tools registered. Every
// tool acts on behalf of userID.
func New(svc *service.Service, userID string, m *metrics.Metrics) *mcp.Server {
	nt := &tools.NoteTools{Svc: svc, UserID: userID}
	ct := &tools.CanvasTools{Svc: svc, UserID: userID}
	st := &tools.SearchTools{Svc: svc, UserID: userID}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "canvas-mcp",
		Version: Version,
	}, nil)

	// Note tools
	addTool(srv, m, &mcp.Tool{
		Name:        "get_note",
		Description: "Get a note by id or by human readable id",
	}, nt.GetNote)

	addTool(srv, m, &mcp.Tool{
		Name:        "get_children",
		Description: "List the direct children of a note, oldest first",
	}, nt.GetChildren)

	addTool(srv, m, &mcp.Tool{
		Name:        "create_note",
		Description: "Create a new root note, optionally with initial text",
	}, nt.CreateNote)

	addTool(srv, m, &mcp.Tool{
		Name:        "create_child_note",
		Description: "Create a new note under an existing parent",
	}, nt.CreateChildNote)

	addTool(srv, m, &mcp.Tool{
		Name:        "update_note",
		Description: "Replace a note's title, content and metadata; [[note-id]] in content records a mention",
	}, nt.UpdateNote)

	addTool(srv, m, &mcp.Tool{
		Name:        "delete_note",
		Description: "Delete a note together with its canvas placements and mentions (children are kept)",
	}, nt.DeleteNote)

	addTool(srv, m, &mcp.Tool{
		Name:        "get_mentioned_by",
		Description: "List the notes whose content mentions the given note",
	}, nt.GetMentionedBy)

	// Canvas tools
	addTool(srv, m, &mcp.Tool{
		Name:        "get_canvas",
		Description: "Get your canvas with its origin and placed items (created on first use)",
	}, ct.GetCanvas)

	addTool(srv, m, &mcp.Tool{
		Name:        "set_canvas_origin",
		Description: "Set the pan offset of the canvas",
	}, ct.SetCanvasOrigin)

	addTool(srv, m, &mcp.Tool{
		Name:        "create_note_on_canvas",
		Description: "Create an empty note and place it on the canvas",
	}, ct.CreateNoteOnCanvas)

	addTool(srv, m, &mcp.Tool{
		Name:        "add_note_to_canvas",
		Description: "Place an existing note on the canvas",
	}, ct.AddNoteToCanvas)

	addTool(srv, m, &mcp.Tool{
		Name:        "set_item_position",
		Description: "Move a canvas item",
	}, ct.SetItemPosition)

	addTool(srv, m, &mcp.Tool{
		Name:        "remove_from_canvas",
		Description: "Remove an item from the canvas without deleting its note",
	}, ct.RemoveFromCanvas)

	addTool(srv, m, &mcp.Tool{
		Name:        "get_collapsed",
		Description: "Get whether a note is collapsed under a canvas item",
	}, ct.GetCollapsed)

	addTool(srv, m, &mcp.Tool{
		Name:        "set_collapsed",
		Description: "Collapse or expand a note under a canvas item",
	}, ct.SetCollapsed)

	// Search and embedding tools
	addTool(srv, m, &mcp.Tool{
		Name:        "search_notes",
		Description: "Full-text search over note titles, content and metadata",
	}, st.SearchNotes)

	addTool(srv, m, &mcp.Tool{
		Name:        "search_or_recent",
		Description: "Search notes, or list the most recent ones when the query is empty",
	}, st.SearchOrRecent)

	addTool(srv, m, &mcp.Tool{
		Name:        "recent_notes",
		Description: "List the most recently created notes",
	}, st.RecentNotes)

	addTool(srv, m, &mcp.Tool{
		Name:        "similar_notes",
		Description: "Find semantically similar notes to a note (id) or to free text (query)",
	}, st.SimilarNotes)

	addTool(srv, m, &mcp.Tool{
		Name:        "embed_all_pending",
		Description: "Start embedding every note that has text but no embedding yet",
	}, st.EmbedAllPending)

	addTool(srv, m, &mcp.Tool{
		Name:        "generate_embedding",
		Description: "Compute the embedding of one note now",
	}, st.GenerateEmbedding)

	return srv
}

// Servers hands out one MCP server per user, built on first use.
type Servers struct {
	svc     *service.Service
	metrics *metrics.Metrics

	mu   sync.Mutex
	byID map[string]*mcp.Server
}

// NewServers creates an empty per-user server set.
func NewServers(svc *service.Service, m *metrics.Metrics) *Servers {
	return &Servers{svc: svc, metrics: m, byID: make(map[string]*mcp.Server)}
}

// For returns the server acting on behalf of userID.
func (s *Servers) For(userID string) *mcp.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv, ok := s.byID[userID]
	if !ok {
		srv = New(s.svc, userID, s.metrics)
		s.byID[userID] = srv
	}
	return srv
}
