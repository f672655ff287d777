package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/auth"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/embedding"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/events"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/geom"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/interaction"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/metrics"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/server"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/service"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/storage"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/pkg/client"
)

// wordEmbedder counts a few words so related texts end up close together.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 4)
		for j, w := range []string{"apple", "river", "engine", "cloud"} {
			v[j] = 0.01 + float32(strings.Count(t, w))
		}
		out[i] = v
	}
	return out, nil
}

type testServer struct {
	url     string
	metrics *metrics.Metrics
}

func setupServer(t *testing.T, embedder embedding.Embedder) *testServer {
	t.Helper()
	dir, err := os.MkdirTemp("", "canvas-httpapi-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := storage.Open(filepath.Join(dir, "canvas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := metrics.New()
	hub := events.NewHub(m)
	t.Cleanup(hub.Close)
	svc := service.New(store, embedder, hub, service.Config{
		Pipeline: embedding.Options{Dimensions: 4},
	}, zerolog.Nop(), m)

	verifier := auth.NewStaticVerifier(map[string]auth.Principal{
		"alice-token": {Subject: "alice", Name: "Alice"},
		"bob-token":   {Subject: "bob", Name: "Bob"},
	})

	// The listener exists before Start, so its address can serve as the
	// resource identifier.
	ts := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + ts.Listener.Addr().String()
	ts.Config.Handler = New(Options{
		Service:              svc,
		Servers:              server.NewServers(svc, m),
		Verifier:             verifier,
		Metrics:              m,
		BaseURL:              baseURL,
		AuthorizationServers: []string{"https://auth.example.com"},
	})
	ts.Start()
	t.Cleanup(ts.Close)
	return &testServer{url: ts.URL, metrics: m}
}

func (s *testServer) client(token string) *client.Client {
	return client.New(s.url, token)
}

func get(t *testing.T, url, token string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func statusOf(err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func TestHealthIsPublic(t *testing.T) {
	s := setupServer(t, nil)
	health, err := client.New(s.url, "").Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health["status"])
}

func TestUnauthorizedChallenge(t *testing.T) {
	s := setupServer(t, nil)

	resp, _ := get(t, s.url+"/api/canvas", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"),
		`resource_metadata="`+s.url+`/.well-known/oauth-protected-resource"`)

	resp, _ = get(t, s.url+"/api/canvas", "wrong-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := get(t, s.url+"/.well-known/oauth-protected-resource", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &meta))
	assert.Equal(t, s.url, meta["resource"])
	assert.Equal(t, []any{"https://auth.example.com"}, meta["authorization_servers"])
}

func TestMe(t *testing.T) {
	s := setupServer(t, nil)
	id, err := s.client("alice-token").Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Subject)
	assert.NotEmpty(t, id.UserID)
}

func TestNoteLifecycle(t *testing.T) {
	s := setupServer(t, nil)
	c := s.client("alice-token")
	ctx := context.Background()

	a, err := c.CreateNote(ctx)
	require.NoError(t, err)
	b, err := c.CreateChild(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ParentID)

	_, err = c.UpdateNote(ctx, a.ID, models.NoteUpdate{Title: "A", Content: "links to [[" + b.ID + "]]"})
	require.NoError(t, err)

	refs, err := c.MentionedBy(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, a.ID, refs[0].ID)

	kids, err := c.Children(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, kids, 1)

	byHID, err := c.GetNoteByHumanID(ctx, a.HumanReadableID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, byHID.ID)

	require.NoError(t, c.DeleteNote(ctx, a.ID))
	refs, err = c.MentionedBy(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = c.GetNote(ctx, a.ID)
	assert.True(t, client.IsNotFound(err), "got %v", err)

	orphan, err := c.GetNote(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, orphan.ParentID)
}

func TestForeignEntitiesAreNotFound(t *testing.T) {
	s := setupServer(t, nil)
	alice, bob := s.client("alice-token"), s.client("bob-token")
	ctx := context.Background()

	note, err := alice.CreateNote(ctx)
	require.NoError(t, err)
	cv, err := alice.Canvas(ctx)
	require.NoError(t, err)
	placed, err := alice.CreateNoteOnCanvas(ctx, cv.ID, geom.V(1, 1))
	require.NoError(t, err)

	_, err = bob.GetNote(ctx, note.ID)
	assert.True(t, client.IsNotFound(err))
	_, err = bob.CreateChild(ctx, note.ID)
	assert.True(t, client.IsNotFound(err))
	err = bob.SetPosition(ctx, placed.Item.ID, geom.V(9, 9))
	assert.True(t, client.IsNotFound(err))
	err = bob.SetOrigin(ctx, cv.ID, geom.V(9, 9))
	assert.True(t, client.IsNotFound(err))

	bobCanvas, err := bob.Canvas(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, cv.ID, bobCanvas.ID)
	assert.Empty(t, bobCanvas.Items)
}

func TestCanvasEndpoints(t *testing.T) {
	s := setupServer(t, nil)
	c := s.client("alice-token")
	ctx := context.Background()

	cv, err := c.Canvas(ctx)
	require.NoError(t, err)
	again, err := c.Canvas(ctx)
	require.NoError(t, err)
	assert.Equal(t, cv.ID, again.ID, "one canvas per user")

	require.NoError(t, c.SetOrigin(ctx, cv.ID, geom.V(-10, 20)))

	placed, err := c.CreateNoteOnCanvas(ctx, cv.ID, geom.V(100, 200))
	require.NoError(t, err)
	require.NotNil(t, placed.Note)
	assert.Equal(t, placed.Note.ID, placed.Item.NoteID)

	other, err := c.CreateNote(ctx)
	require.NoError(t, err)
	item, err := c.AddNoteToCanvas(ctx, cv.ID, other.ID, geom.V(5, 5))
	require.NoError(t, err)
	assert.Equal(t, other.ID, item.NoteID)

	require.NoError(t, c.SetPosition(ctx, item.ID, geom.V(6, 7)))
	got, err := c.Item(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, geom.V(6, 7), got.Position)

	collapsed, err := c.Collapsed(ctx, other.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, collapsed, "notes start collapsed")
	collapsed, err = c.SetCollapsed(ctx, other.ID, item.ID, false)
	require.NoError(t, err)
	assert.False(t, collapsed)
	collapsed, err = c.Collapsed(ctx, other.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, collapsed)

	require.NoError(t, c.RemoveItem(ctx, item.ID))
	_, err = c.Item(ctx, item.ID)
	assert.True(t, client.IsNotFound(err))
	_, err = c.GetNote(ctx, other.ID)
	assert.NoError(t, err, "removing an item keeps its note")

	cv, err = c.Canvas(ctx)
	require.NoError(t, err)
	assert.Equal(t, geom.V(-10, 20), cv.Origin)
	assert.Len(t, cv.Items, 1)
}

func TestEngineCommitsThroughClient(t *testing.T) {
	s := setupServer(t, nil)
	c := s.client("alice-token")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cv, err := c.Canvas(ctx)
	require.NoError(t, err)
	placed, err := c.CreateNoteOnCanvas(ctx, cv.ID, geom.V(0, 0))
	require.NoError(t, err)
	cv, err = c.Canvas(ctx)
	require.NoError(t, err)

	e := interaction.NewEngine(ctx, c, cv, geom.Vec{})
	require.NoError(t, e.PointerDownItem(placed.Item.ID, interaction.Pointer{Pos: geom.V(0, 0)}))
	e.PointerMove(interaction.Pointer{Pos: geom.V(40, 60)})
	require.NoError(t, e.PointerUp(interaction.Pointer{Pos: geom.V(40, 60)}))

	select {
	case ack := <-e.Acks():
		require.NoError(t, e.HandleAck(ack))
	case <-time.After(5 * time.Second):
		t.Fatal("no ack")
	}

	item, err := c.Item(ctx, placed.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, geom.V(40, 60), item.Position)
	pos, _ := e.ItemPosition(placed.Item.ID)
	assert.Equal(t, geom.V(40, 60), pos)
}

func TestSearchEndpoints(t *testing.T) {
	s := setupServer(t, nil)
	c := s.client("alice-token")
	ctx := context.Background()

	for _, title := range []string{"apple pie", "apple tart", "river walk"} {
		n, err := c.CreateNote(ctx)
		require.NoError(t, err)
		_, err = c.UpdateNote(ctx, n.ID, models.NoteUpdate{Title: title})
		require.NoError(t, err)
	}

	hits, err := c.Search(ctx, "apple", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = c.Search(ctx, "apple", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	none, err := c.Search(ctx, "   ", 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	recent, err := c.SearchOrRecent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	recent, err = c.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	resp, _ := get(t, s.url+"/api/search?q=x&limit=abc", "alice-token")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEmbeddingDisabledIsUnavailable(t *testing.T) {
	s := setupServer(t, nil)
	c := s.client("alice-token")
	ctx := context.Background()

	_, err := c.EmbedAll(ctx)
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(err))
	_, err = c.SimilarToText(ctx, "apple", 5)
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(err))

	st, err := c.EmbeddingStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "disabled", st.State)
}

func TestSimilarEndpoints(t *testing.T) {
	s := setupServer(t, wordEmbedder{})
	c := s.client("alice-token")
	ctx := context.Background()

	ids := map[string]string{}
	for _, title := range []string{"apple", "apple apple", "river", "engine"} {
		n, err := c.CreateNote(ctx)
		require.NoError(t, err)
		_, err = c.UpdateNote(ctx, n.ID, models.NoteUpdate{Title: title})
		require.NoError(t, err)
		embedded, err := c.EmbedNote(ctx, n.ID)
		require.NoError(t, err)
		assert.True(t, embedded.HasEmbedding)
		ids[title] = n.ID
	}

	similar, err := c.SimilarNotes(ctx, ids["apple"], 1)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, ids["apple apple"], similar[0].ID)

	byText, err := c.SimilarToText(ctx, "a river bank", 1)
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, ids["river"], byText[0].ID)

	// Bob has no embeddings of his own.
	bobHits, err := s.client("bob-token").SimilarToText(ctx, "apple", 5)
	require.NoError(t, err)
	assert.Empty(t, bobHits)

	cleared, err := c.RemoveAllEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cleared)
}

func TestEventsFeed(t *testing.T) {
	s := setupServer(t, nil)
	c := s.client("alice-token")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed, err := c.Events(ctx)
	require.NoError(t, err)

	// Bob's activity is not delivered to Alice.
	_, err = s.client("bob-token").CreateNote(ctx)
	require.NoError(t, err)

	// The subscription is registered asynchronously after the upgrade, so
	// keep creating notes until one arrives.
	var note *models.Note
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev, ok := <-feed:
			require.True(t, ok, "feed closed")
			assert.Equal(t, events.NoteCreated, ev.Type)
			require.NotNil(t, note)
			return
		case <-tick.C:
			note, err = c.CreateNote(ctx)
			require.NoError(t, err)
		case <-deadline:
			t.Fatal("no event received")
		}
	}
}

func TestEventsRequireAuth(t *testing.T) {
	s := setupServer(t, nil)
	_, err := s.client("").Events(context.Background())
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupServer(t, nil)
	_, err := s.client("alice-token").Canvas(context.Background())
	require.NoError(t, err)

	resp, body := get(t, s.url+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `canvas_http_requests_total{method="GET",route="/api/canvas",status="200"} 1`)
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(r)
}

func TestMCPOverHTTP(t *testing.T) {
	s := setupServer(t, nil)
	ctx := context.Background()

	resp, err := http.Post(s.url+"/mcp", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	transport := &mcp.StreamableClientTransport{
		Endpoint:   s.url + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: "alice-token", base: http.DefaultTransport}},
	}
	mc := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := mc.Connect(ctx, transport, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "create_note",
		Arguments: map[string]any{"title": "from mcp"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	// The note belongs to the token's user.
	hits, err := s.client("alice-token").Search(ctx, "mcp", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
