package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/geom"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "canvas-mcp-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// setupStore opens a fresh database in a temp directory.
func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(tempDir(t), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func setupUser(t *testing.T, s *Store, subject string) *models.User {
	t.Helper()
	u, err := s.UpsertUser(context.Background(), subject, subject)
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	return u
}

func mustCreate(t *testing.T, s *Store, userID, parentID string) *models.Note {
	t.Helper()
	n, err := s.CreateNote(context.Background(), userID, parentID)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	return n
}

func mustUpdate(t *testing.T, s *Store, userID, noteID string, upd models.NoteUpdate) *models.Note {
	t.Helper()
	n, err := s.UpdateNote(context.Background(), userID, noteID, upd)
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	return n
}

func ids(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestOpenCreatesFile(t *testing.T) {
	dir := tempDir(t)
	path := filepath.Join(dir, "nested", "notes.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected db file to exist: %v", err)
	}
}

func TestUpsertUser(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	a, err := s.UpsertUser(ctx, "sub-1", "Ada")
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	b, err := s.UpsertUser(ctx, "sub-1", "")
	if err != nil {
		t.Fatalf("UpsertUser again: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("Same subject gave two users: %q and %q", a.ID, b.ID)
	}
	if b.Name != "Ada" {
		t.Errorf("Empty name overwrote stored name: %q", b.Name)
	}
	if _, err := s.UpsertUser(ctx, "", "x"); err == nil {
		t.Error("Expected error for empty subject")
	}
}

func TestCreateNoteIsEmpty(t *testing.T) {
	s := setupStore(t)
	u := setupUser(t, s, "u")

	n := mustCreate(t, s, u.ID, "")
	if n.Title != "" || n.Content != "" || n.Metadata != "" {
		t.Errorf("New note is not empty: %+v", n)
	}
	if n.HumanReadableID == "" {
		t.Error("HumanReadableID should be assigned")
	}
	if n.ParentID != "" {
		t.Errorf("ParentID = %q, want empty", n.ParentID)
	}

	got, err := s.GetNoteByHumanID(context.Background(), u.ID, n.HumanReadableID)
	if err != nil || got.ID != n.ID {
		t.Errorf("GetNoteByHumanID = %v, %v", got, err)
	}
}

func TestCreateNoteUnknownUser(t *testing.T) {
	s := setupStore(t)
	_, err := s.CreateNote(context.Background(), "nobody", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHumanIDsAreUnique(t *testing.T) {
	s := setupStore(t)
	u := setupUser(t, s, "u")
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		n := mustCreate(t, s, u.ID, "")
		if seen[n.HumanReadableID] {
			t.Fatalf("Duplicate human id %q", n.HumanReadableID)
		}
		seen[n.HumanReadableID] = true
	}
}

func TestCreateChildAndChildren(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := setupUser(t, s, "u")

	parent := mustCreate(t, s, u.ID, "")
	c1 := mustCreate(t, s, u.ID, parent.ID)
	c2 := mustCreate(t, s, u.ID, parent.ID)
	grandchild := mustCreate(t, s, u.ID, c1.ID)

	children, err := s.Children(ctx, u.ID, parent.ID)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	got := ids(children)
	if len(got) != 2 || got[0] != c1.ID || got[1] != c2.ID {
		t.Errorf("Children = %v, want [%s %s]", got, c1.ID, c2.ID)
	}
	for _, id := range got {
		if id == grandchild.ID {
			t.Error("Children should return one level only")
		}
	}
}

func TestCreateChildRejectsForeignParent(t *testing.T) {
	s := setupStore(t)
	alice := setupUser(t, s, "alice")
	bob := setupUser(t, s, "bob")
	parent := mustCreate(t, s, alice.ID, "")

	_, err := s.CreateNote(context.Background(), bob.ID, parent.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetNoteIsOwnerScoped(t *testing.T) {
	s := setupStore(t)
	alice := setupUser(t, s, "alice")
	bob := setupUser(t, s, "bob")
	n := mustCreate(t, s, alice.ID, "")

	if _, err := s.GetNote(context.Background(), bob.ID, n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateNoteSearchText(t *testing.T) {
	s := setupStore(t)
	u := setupUser(t, s, "u")
	n := mustCreate(t, s, u.ID, "")

	got := mustUpdate(t, s, u.ID, n.ID, models.NoteUpdate{Title: "T", Content: "C", Metadata: "M"})
	if got.SearchText != "T\nC\nM" {
		t.Errorf("SearchText = %q, want %q", got.SearchText, "T\nC\nM")
	}
}

func TestUpdateNoteMentions(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := setupUser(t, s, "u")
	a := mustCreate(t, s, u.ID, "")
	b := mustCreate(t, s, u.ID, "")
	c := mustCreate(t, s, u.ID, "")

	mustUpdate(t, s, u.ID, a.ID, models.NoteUpdate{
		Content: "see [[" + b.ID + "]] and [[" + b.ID + "]] and [[" + c.ID + "]] and [[missing]]",
	})
	ms, err := s.Mentions(ctx, a.ID)
	if err != nil {
		t.Fatalf("Mentions: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("Expected 2 deduplicated edges, got %d: %+v", len(ms), ms)
	}

	// Edges are recomputed from scratch on every save.
	mustUpdate(t, s, u.ID, a.ID, models.NoteUpdate{Content: "only [[" + c.ID + "]]"})
	ms, _ = s.Mentions(ctx, a.ID)
	if len(ms) != 1 || ms[0].To != c.ID {
		t.Errorf("Mentions after rewrite = %+v, want one edge to %s", ms, c.ID)
	}
}

func TestMentionsIgnoreOtherUsersNotes(t *testing.T) {
	s := setupStore(t)
	alice := setupUser(t, s, "alice")
	bob := setupUser(t, s, "bob")
	a := mustCreate(t, s, alice.ID, "")
	foreign := mustCreate(t, s, bob.ID, "")

	mustUpdate(t, s, alice.ID, a.ID, models.NoteUpdate{Content: "[[" + foreign.ID + "]]"})
	ms, _ := s.Mentions(context.Background(), a.ID)
	if len(ms) != 0 {
		t.Errorf("Expected no edge to another user's note, got %+v", ms)
	}
}

func TestUpdateNoteParent(t *testing.T) {
	s := setupStore(t)
	u := setupUser(t, s, "u")
	a := mustCreate(t, s, u.ID, "")
	b := mustCreate(t, s, u.ID, a.ID)
	c := mustCreate(t, s, u.ID, b.ID)

	empty := ""
	got := mustUpdate(t, s, u.ID, b.ID, models.NoteUpdate{ParentID: &empty})
	if got.ParentID != "" {
		t.Errorf("ParentID = %q, want detached", got.ParentID)
	}

	// A note cannot move under its own descendant.
	cID := c.ID
	_, err := s.UpdateNote(context.Background(), u.ID, b.ID, models.NoteUpdate{ParentID: &cID})
	if !errors.Is(err, ErrInvalidParent) {
		t.Errorf("err = %v, want ErrInvalidParent", err)
	}
	self := b.ID
	_, err = s.UpdateNote(context.Background(), u.ID, b.ID, models.NoteUpdate{ParentID: &self})
	if !errors.Is(err, ErrInvalidParent) {
		t.Errorf("err = %v, want ErrInvalidParent", err)
	}

	// Leaving ParentID nil keeps the current parent.
	got = mustUpdate(t, s, u.ID, c.ID, models.NoteUpdate{Title: "x"})
	if got.ParentID != b.ID {
		t.Errorf("ParentID = %q, want %q", got.ParentID, b.ID)
	}
}

func TestDeleteNoteCascades(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := setupUser(t, s, "u")

	n := mustCreate(t, s, u.ID, "")
	child := mustCreate(t, s, u.ID, n.ID)
	other := mustCreate(t, s, u.ID, "")
	mustUpdate(t, s, u.ID, n.ID, models.NoteUpdate{Content: "[[" + other.ID + "]]"})
	mustUpdate(t, s, u.ID, other.ID, models.NoteUpdate{Content: "[[" + n.ID + "]]"})

	canvas, err := s.Canvas(ctx, u.ID)
	if err != nil {
		t.Fatalf("Canvas: %v", err)
	}
	item, err := s.AddNoteToCanvas(ctx, u.ID, canvas.ID, n.ID, geom.V(10, 20))
	if err != nil {
		t.Fatalf("AddNoteToCanvas: %v", err)
	}
	if err := s.SetCollapsed(ctx, u.ID, n.ID, item.ID, false); err != nil {
		t.Fatalf("SetCollapsed: %v", err)
	}

	if err := s.DeleteNote(ctx, u.ID, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}

	if _, err := s.GetNote(ctx, u.ID, n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deleted note still readable: %v", err)
	}
	if _, err := s.Item(ctx, u.ID, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Canvas item survived note deletion: %v", err)
	}
	var edges int
	s.db.QueryRow(`SELECT COUNT(*) FROM mentions WHERE from_note = ? OR to_note = ?`, n.ID, n.ID).Scan(&edges)
	if edges != 0 {
		t.Errorf("Expected no mention edges touching deleted note, got %d", edges)
	}

	// Children stay, pointing at a parent that no longer exists.
	got, err := s.GetNote(ctx, u.ID, child.ID)
	if err != nil {
		t.Fatalf("Child was deleted: %v", err)
	}
	if got.ParentID != n.ID {
		t.Errorf("Child ParentID = %q, want dangling %q", got.ParentID, n.ID)
	}

	// UI state rows are left behind.
	var uiRows int
	s.db.QueryRow(`SELECT COUNT(*) FROM note_ui_states WHERE note_id = ?`, n.ID).Scan(&uiRows)
	if uiRows != 1 {
		t.Errorf("Expected orphaned ui state row, got %d", uiRows)
	}
}

func TestMentionedByEndToEnd(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := setupUser(t, s, "u")

	a := mustCreate(t, s, u.ID, "")
	b := mustCreate(t, s, u.ID, a.ID)
	mustUpdate(t, s, u.ID, a.ID, models.NoteUpdate{Content: "child is [[" + b.ID + "]] twice [[" + b.ID + "]]"})

	by, err := s.MentionedBy(ctx, u.ID, b.ID)
	if err != nil {
		t.Fatalf("MentionedBy: %v", err)
	}
	if got := ids(by); len(got) != 1 || got[0] != a.ID {
		t.Errorf("MentionedBy = %v, want [%s]", got, a.ID)
	}

	if err := s.DeleteNote(ctx, u.ID, a.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	by, err = s.MentionedBy(ctx, u.ID, b.ID)
	if err != nil {
		t.Fatalf("MentionedBy after delete: %v", err)
	}
	if len(by) != 0 {
		t.Errorf("MentionedBy after delete = %v, want empty", ids(by))
	}
}

func TestLineage(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := setupUser(t, s, "u")
	root := mustCreate(t, s, u.ID, "")
	mid := mustCreate(t, s, u.ID, root.ID)
	leaf := mustCreate(t, s, u.ID, mid.ID)

	chain, err := s.Lineage(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	if got := ids(chain); len(got) != 2 || got[0] != root.ID || got[1] != mid.ID {
		t.Errorf("Lineage = %v, want [%s %s]", got, root.ID, mid.ID)
	}

	// A deleted ancestor cuts the chain.
	if err := s.DeleteNote(ctx, u.ID, mid.ID); err != nil {
		t.Fatal(err)
	}
	chain, _ = s.Lineage(ctx, leaf.ID)
	if len(chain) != 0 {
		t.Errorf("Lineage with missing parent = %v, want empty", ids(chain))
	}
}

func TestLineageStopsOnCycle(t *testing.T) {
	s := setupStore(t)
	u := setupUser(t, s, "u")
	a := mustCreate(t, s, u.ID, "")
	b := mustCreate(t, s, u.ID, a.ID)
	// Corrupt the forest directly; the API refuses to build cycles.
	if _, err := s.db.Exec(`UPDATE notes SET parent_id = ? WHERE id = ?`, b.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	chain, err := s.Lineage(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	if len(chain) != 1 || chain[0].ID != a.ID {
		t.Errorf("Lineage = %v, want [%s]", ids(chain), a.ID)
	}
}
