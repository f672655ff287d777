package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/service"
)

// CanvasTools holds references needed by canvas tool handlers.
type CanvasTools struct {
	Svc    *service.Service
	UserID string
}

// --- Input types ---

type GetCanvasInput struct{}

type SetCanvasOriginInput struct {
	CanvasID string        `json:"canvas_id" jsonschema:"Canvas id from get_canvas"`
	Origin   PositionInput `json:"origin" jsonschema:"New pan offset"`
}

type CreateNoteOnCanvasInput struct {
	CanvasID string        `json:"canvas_id" jsonschema:"Canvas id from get_canvas"`
	Position PositionInput `json:"position" jsonschema:"Where to place the new note"`
}

type AddNoteToCanvasInput struct {
	CanvasID string        `json:"canvas_id" jsonschema:"Canvas id from get_canvas"`
	NoteID   string        `json:"note_id" jsonschema:"Existing note to place"`
	Position PositionInput `json:"position" jsonschema:"Where to place the note"`
}

type SetItemPositionInput struct {
	ItemID   string        `json:"item_id" jsonschema:"Canvas item id"`
	Position PositionInput `json:"position" jsonschema:"New position"`
}

type ItemIDInput struct {
	ItemID string `json:"item_id" jsonschema:"Canvas item id"`
}

type CollapsedInput struct {
	NoteID string `json:"note_id" jsonschema:"Note id"`
	ItemID string `json:"item_id" jsonschema:"Canvas item under which the note is shown"`
}

type SetCollapsedInput struct {
	NoteID    string `json:"note_id" jsonschema:"Note id"`
	ItemID    string `json:"item_id" jsonschema:"Canvas item under which the note is shown"`
	Collapsed bool   `json:"collapsed" jsonschema:"Whether the note's children are hidden"`
}

// --- Handlers ---

func (t *CanvasTools) GetCanvas(ctx context.Context, _ *mcp.CallToolRequest, _ GetCanvasInput) (*mcp.CallToolResult, any, error) {
	cv, err := t.Svc.Canvas(ctx, t.UserID)
	if err != nil {
		return toolError("Failed to get canvas: %v", err), nil, nil
	}
	return toolJSON(cv)
}

func (t *CanvasTools) SetCanvasOrigin(ctx context.Context, _ *mcp.CallToolRequest, input SetCanvasOriginInput) (*mcp.CallToolResult, any, error) {
	if err := t.Svc.SetOrigin(ctx, t.UserID, input.CanvasID, input.Origin.vec()); err != nil {
		return toolError("Failed to set canvas origin: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Canvas origin set to (%g, %g).", input.Origin.X, input.Origin.Y)), nil, nil
}

func (t *CanvasTools) CreateNoteOnCanvas(ctx context.Context, _ *mcp.CallToolRequest, input CreateNoteOnCanvasInput) (*mcp.CallToolResult, any, error) {
	item, note, err := t.Svc.CreateNoteOnCanvas(ctx, t.UserID, input.CanvasID, input.Position.vec())
	if err != nil {
		return toolError("Failed to create note on canvas: %v", err), nil, nil
	}
	return toolJSON(models.PlacedNote{Item: *item, Note: note})
}

func (t *CanvasTools) AddNoteToCanvas(ctx context.Context, _ *mcp.CallToolRequest, input AddNoteToCanvasInput) (*mcp.CallToolResult, any, error) {
	item, err := t.Svc.AddNoteToCanvas(ctx, t.UserID, input.CanvasID, input.NoteID, input.Position.vec())
	if err != nil {
		return toolError("Failed to add note to canvas: %v", err), nil, nil
	}
	return toolJSON(item)
}

func (t *CanvasTools) SetItemPosition(ctx context.Context, _ *mcp.CallToolRequest, input SetItemPositionInput) (*mcp.CallToolResult, any, error) {
	if err := t.Svc.SetPosition(ctx, t.UserID, input.ItemID, input.Position.vec()); err != nil {
		return toolError("Failed to move item: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Item moved to (%g, %g).", input.Position.X, input.Position.Y)), nil, nil
}

func (t *CanvasTools) RemoveFromCanvas(ctx context.Context, _ *mcp.CallToolRequest, input ItemIDInput) (*mcp.CallToolResult, any, error) {
	if err := t.Svc.RemoveItem(ctx, t.UserID, input.ItemID); err != nil {
		return toolError("Failed to remove item: %v", err), nil, nil
	}
	return toolText("Item removed from canvas. The note itself was kept."), nil, nil
}

func (t *CanvasTools) GetCollapsed(ctx context.Context, _ *mcp.CallToolRequest, input CollapsedInput) (*mcp.CallToolResult, any, error) {
	c, err := t.Svc.Collapsed(ctx, t.UserID, input.NoteID, input.ItemID)
	if err != nil {
		return toolError("Failed to get collapse state: %v", err), nil, nil
	}
	return toolJSON(map[string]bool{"collapsed": c})
}

func (t *CanvasTools) SetCollapsed(ctx context.Context, _ *mcp.CallToolRequest, input SetCollapsedInput) (*mcp.CallToolResult, any, error) {
	c, err := t.Svc.SetCollapsed(ctx, t.UserID, input.NoteID, input.ItemID, input.Collapsed)
	if err != nil {
		return toolError("Failed to set collapse state: %v", err), nil, nil
	}
	return toolJSON(map[string]bool{"collapsed": c})
}
