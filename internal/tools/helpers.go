package tools

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/geom"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

// PositionInput is a canvas coordinate.
type PositionInput struct {
	X float64 `json:"x" jsonschema:"Horizontal canvas coordinate"`
	Y float64 `json:"y" jsonschema:"Vertical canvas coordinate"`
}

func (p PositionInput) vec() geom.Vec { return geom.V(p.X, p.Y) }

// noteSummary is the compact form used in lists.
type noteSummary struct {
	ID              string `json:"id"`
	HumanReadableID string `json:"human_readable_id"`
	Display         string `json:"display"`
	ParentID        string `json:"parent_id,omitempty"`
}

func summarize(notes []models.Note) []noteSummary {
	out := make([]noteSummary, len(notes))
	for i := range notes {
		n := &notes[i]
		out[i] = noteSummary{
			ID:              n.ID,
			HumanReadableID: n.HumanReadableID,
			Display:         n.ShortDisplay(),
			ParentID:        n.ParentID,
		}
	}
	return out
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
