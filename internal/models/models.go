package models

import "github.com/wagnerlima/memory-cloud/canvas-mcp/internal/geom"

// User is one authenticated principal, keyed by the identity provider subject.
type User struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// Note is a node in a user's note forest.
type Note struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	ParentID        string `json:"parent_id,omitempty"`
	HumanReadableID string `json:"human_readable_id"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	Metadata        string `json:"metadata"`
	SearchText      string `json:"-"`
	HasEmbedding    bool   `json:"has_embedding"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// Empty reports whether title, content and metadata are all blank.
func (n *Note) Empty() bool {
	return n.Title == "" && n.Content == "" && n.Metadata == ""
}

// ShortDisplay is the label used when a note is referenced elsewhere.
func (n *Note) ShortDisplay() string {
	if n.Title != "" {
		return n.Title
	}
	return "@" + n.HumanReadableID
}

// NoteUpdate carries the editable fields of a note.
type NoteUpdate struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Metadata string  `json:"metadata"`
	ParentID *string `json:"parent_id,omitempty"`
}

// BuildSearchText materializes the text indexed for search.
func BuildSearchText(title, content, metadata string) string {
	return title + "\n" + content + "\n" + metadata
}

// Mention is a directed reference from one note's content to another note.
type Mention struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Canvas is a user's pannable surface.
type Canvas struct {
	ID     string   `json:"id"`
	UserID string   `json:"user_id"`
	Origin geom.Vec `json:"origin"`
}

// CanvasItem places a note subtree at a position on a canvas.
type CanvasItem struct {
	ID       string   `json:"id"`
	CanvasID string   `json:"canvas_id"`
	NoteID   string   `json:"note_id"`
	Position geom.Vec `json:"position"`
}

// PlacedNote is the result of putting a note on a canvas. Note is set only
// when the note was created by the same call.
type PlacedNote struct {
	Item CanvasItem `json:"item"`
	Note *Note      `json:"note,omitempty"`
}

// CanvasView is a canvas together with everything placed on it.
type CanvasView struct {
	Canvas
	Items []CanvasItem `json:"items"`
}

// Positions returns the item positions in order.
func (v *CanvasView) Positions() []geom.Vec {
	out := make([]geom.Vec, len(v.Items))
	for i, it := range v.Items {
		out[i] = it.Position
	}
	return out
}

// NoteUIState is the per-placement expand/collapse flag of a note.
type NoteUIState struct {
	NoteID       string `json:"note_id"`
	CanvasItemID string `json:"canvas_item_id"`
	Collapsed    bool   `json:"collapsed"`
}
