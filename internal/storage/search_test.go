package storage

import (
	"context"
	"testing"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

func TestFTSQuery(t *testing.T) {
	cases := map[string]string{
		"":              "",
		"   ":           "",
		"go":            `"go"*`,
		"go sqlite":     `"go" "sqlite"*`,
		`say "hi" AND`:  `"say" """hi""" "AND"*`,
	}
	for in, want := range cases {
		if got := ftsQuery(in); got != want {
			t.Errorf("ftsQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSearch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice := setupUser(t, s, "alice")
	bob := setupUser(t, s, "bob")

	a1 := mustCreate(t, s, alice.ID, "")
	mustUpdate(t, s, alice.ID, a1.ID, models.NoteUpdate{Title: "Gardening", Content: "tomatoes need sun"})
	a2 := mustCreate(t, s, alice.ID, "")
	mustUpdate(t, s, alice.ID, a2.ID, models.NoteUpdate{Title: "Cooking", Metadata: "source: tomato book"})
	b1 := mustCreate(t, s, bob.ID, "")
	mustUpdate(t, s, bob.ID, b1.ID, models.NoteUpdate{Content: "tomatoes everywhere"})

	got, err := s.Search(ctx, alice.ID, "tomato", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 of alice's notes, got %v", ids(got))
	}
	for _, n := range got {
		if n.UserID != alice.ID {
			t.Errorf("Search leaked note %s of another user", n.ID)
		}
	}

	got, _ = s.Search(ctx, alice.ID, "gardening sun", 10)
	if len(got) != 1 || got[0].ID != a1.ID {
		t.Errorf("Search(gardening sun) = %v, want [%s]", ids(got), a1.ID)
	}

	got, _ = s.Search(ctx, alice.ID, "tomato", 1)
	if len(got) != 1 {
		t.Errorf("Search limit ignored: %v", ids(got))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s := setupStore(t)
	u := setupUser(t, s, "u")
	mustCreate(t, s, u.ID, "")

	got, err := s.Search(context.Background(), u.ID, "  \t ", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Blank query should return an empty list, got %v", got)
	}
}

func TestSearchSeesUpdates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := setupUser(t, s, "u")
	n := mustCreate(t, s, u.ID, "")
	mustUpdate(t, s, u.ID, n.ID, models.NoteUpdate{Title: "first"})
	mustUpdate(t, s, u.ID, n.ID, models.NoteUpdate{Title: "second"})

	if got, _ := s.Search(ctx, u.ID, "first", 10); len(got) != 0 {
		t.Errorf("Stale search text still indexed: %v", ids(got))
	}
	if got, _ := s.Search(ctx, u.ID, "second", 10); len(got) != 1 {
		t.Errorf("Updated search text not indexed: %v", ids(got))
	}

	if err := s.DeleteNote(ctx, u.ID, n.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Search(ctx, u.ID, "second", 10); len(got) != 0 {
		t.Errorf("Deleted note still indexed: %v", ids(got))
	}
}

func TestRecentAndSearchOrRecent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u := setupUser(t, s, "u")
	var created []string
	for i := 0; i < 5; i++ {
		created = append(created, mustCreate(t, s, u.ID, "").ID)
	}
	mustUpdate(t, s, u.ID, created[0], models.NoteUpdate{Title: "needle"})

	recent, err := s.Recent(ctx, u.ID, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	want := []string{created[4], created[3], created[2]}
	got := ids(recent)
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("Recent = %v, want %v", got, want)
		}
	}

	fallback, _ := s.SearchOrRecent(ctx, u.ID, "", 3)
	if len(fallback) != 3 {
		t.Errorf("SearchOrRecent with blank query = %v, want 3 recent", ids(fallback))
	}
	hits, _ := s.SearchOrRecent(ctx, u.ID, "needle", 3)
	if len(hits) != 1 || hits[0].ID != created[0] {
		t.Errorf("SearchOrRecent(needle) = %v", ids(hits))
	}
}
