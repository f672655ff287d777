package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/service"
)

// NoteTools holds references needed by note tool handlers. Every handler
// acts on behalf of UserID.
type NoteTools struct {
	Svc    *service.Service
	UserID string
}

// --- Input types ---

type GetNoteInput struct {
	ID      string `json:"id,omitempty" jsonschema:"Note id"`
	HumanID string `json:"human_id,omitempty" jsonschema:"Human readable id such as brave-otter, with or without a leading @"`
}

type NoteIDInput struct {
	ID string `json:"id" jsonschema:"Note id"`
}

type CreateNoteInput struct {
	Title    string `json:"title,omitempty" jsonschema:"Optional initial title"`
	Content  string `json:"content,omitempty" jsonschema:"Optional initial content; [[note-id]] creates a mention"`
	Metadata string `json:"metadata,omitempty" jsonschema:"Optional free-form metadata"`
}

type CreateChildNoteInput struct {
	ParentID string `json:"parent_id" jsonschema:"Id of the parent note"`
	Title    string `json:"title,omitempty" jsonschema:"Optional initial title"`
	Content  string `json:"content,omitempty" jsonschema:"Optional initial content"`
	Metadata string `json:"metadata,omitempty" jsonschema:"Optional free-form metadata"`
}

type UpdateNoteInput struct {
	ID       string  `json:"id" jsonschema:"Note id"`
	Title    string  `json:"title,omitempty" jsonschema:"New title; all text fields are replaced, omitted ones become empty"`
	Content  string  `json:"content,omitempty" jsonschema:"New content; [[note-id]] creates a mention"`
	Metadata string  `json:"metadata,omitempty" jsonschema:"New metadata"`
	ParentID *string `json:"parent_id,omitempty" jsonschema:"New parent id; empty string detaches, omit to keep"`
}

// --- Handlers ---

func (t *NoteTools) GetNote(ctx context.Context, _ *mcp.CallToolRequest, input GetNoteInput) (*mcp.CallToolResult, any, error) {
	var (
		note *models.Note
		err  error
	)
	switch {
	case input.ID != "":
		note, err = t.Svc.GetNote(ctx, t.UserID, input.ID)
	case input.HumanID != "":
		note, err = t.Svc.GetNoteByHumanID(ctx, t.UserID, input.HumanID)
	default:
		return toolError("Either id or human_id is required"), nil, nil
	}
	if err != nil {
		return toolError("Failed to get note: %v", err), nil, nil
	}
	return toolJSON(note)
}

func (t *NoteTools) GetChildren(ctx context.Context, _ *mcp.CallToolRequest, input NoteIDInput) (*mcp.CallToolResult, any, error) {
	children, err := t.Svc.Children(ctx, t.UserID, input.ID)
	if err != nil {
		return toolError("Failed to get children: %v", err), nil, nil
	}
	return toolJSON(summarize(children))
}

func (t *NoteTools) CreateNote(ctx context.Context, _ *mcp.CallToolRequest, input CreateNoteInput) (*mcp.CallToolResult, any, error) {
	note, err := t.Svc.CreateNote(ctx, t.UserID)
	if err != nil {
		return toolError("Failed to create note: %v", err), nil, nil
	}
	return t.fill(ctx, note, input.Title, input.Content, input.Metadata)
}

func (t *NoteTools) CreateChildNote(ctx context.Context, _ *mcp.CallToolRequest, input CreateChildNoteInput) (*mcp.CallToolResult, any, error) {
	if input.ParentID == "" {
		return toolError("parent_id is required"), nil, nil
	}
	note, err := t.Svc.CreateChild(ctx, t.UserID, input.ParentID)
	if err != nil {
		return toolError("Failed to create child note: %v", err), nil, nil
	}
	return t.fill(ctx, note, input.Title, input.Content, input.Metadata)
}

// fill writes initial text into a freshly created note.
func (t *NoteTools) fill(ctx context.Context, note *models.Note, title, content, metadata string) (*mcp.CallToolResult, any, error) {
	if title == "" && content == "" && metadata == "" {
		return toolJSON(note)
	}
	updated, err := t.Svc.UpdateNote(ctx, t.UserID, note.ID, models.NoteUpdate{
		Title:    title,
		Content:  content,
		Metadata: metadata,
	})
	if err != nil {
		return toolError("Note %s created but failed to set its text: %v", note.ID, err), nil, nil
	}
	return toolJSON(updated)
}

func (t *NoteTools) UpdateNote(ctx context.Context, _ *mcp.CallToolRequest, input UpdateNoteInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Note id is required"), nil, nil
	}
	note, err := t.Svc.UpdateNote(ctx, t.UserID, input.ID, models.NoteUpdate{
		Title:    input.Title,
		Content:  input.Content,
		Metadata: input.Metadata,
		ParentID: input.ParentID,
	})
	if err != nil {
		return toolError("Failed to update note: %v", err), nil, nil
	}
	return toolJSON(note)
}

func (t *NoteTools) DeleteNote(ctx context.Context, _ *mcp.CallToolRequest, input NoteIDInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Note id is required"), nil, nil
	}
	note, err := t.Svc.GetNote(ctx, t.UserID, input.ID)
	if err != nil {
		return toolError("Failed to delete note: %v", err), nil, nil
	}
	if err := t.Svc.DeleteNote(ctx, t.UserID, input.ID); err != nil {
		return toolError("Failed to delete note: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Note %q deleted.", note.ShortDisplay())), nil, nil
}

func (t *NoteTools) GetMentionedBy(ctx context.Context, _ *mcp.CallToolRequest, input NoteIDInput) (*mcp.CallToolResult, any, error) {
	notes, err := t.Svc.MentionedBy(ctx, t.UserID, input.ID)
	if err != nil {
		return toolError("Failed to get mentions: %v", err), nil, nil
	}
	return toolJSON(summarize(notes))
}
