// Package client is a typed Go client for the canvas REST API.
//
// It mirrors the server routes one method per operation:
//
//	c := client.New("http://localhost:8080", token)
//	view, err := c.Canvas(ctx)
//
// Within this module a Client also satisfies the committer and note updater
// interfaces of internal/interaction, so the drag engine and note editor can
// run against a live server. Those packages are internal and cannot be
// imported from other modules.
//
// Events streams the caller's change feed over a websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/auth"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/embedding"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/events"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/geom"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/interaction"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

var (
	_ interaction.Committer   = (*Client)(nil)
	_ interaction.NoteUpdater = (*Client)(nil)
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d, message=%s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one server with one bearer token. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client. baseURL includes scheme and host, without a
// trailing slash.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// doRequest performs an HTTP request with auth and JSON headers
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

// decodeResponse decodes the JSON response into target
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// call performs a request and decodes the response into target, which may
// be nil.
func (c *Client) call(ctx context.Context, method, path string, body, target any) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeResponse(resp, target)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func limitQuery(q url.Values, limit int) url.Values {
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// Health checks the health status of the server
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	if err := c.call(ctx, http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Me returns the identity behind the client's token.
func (c *Client) Me(ctx context.Context) (*auth.Identity, error) {
	var id auth.Identity
	if err := c.call(ctx, http.MethodGet, "/api/me", nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Notes

func (c *Client) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var n models.Note
	if err := c.call(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(id), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) GetNoteByHumanID(ctx context.Context, hid string) (*models.Note, error) {
	var n models.Note
	if err := c.call(ctx, http.MethodGet, "/api/notes/by-human-id/"+url.PathEscape(hid), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) Children(ctx context.Context, id string) ([]models.Note, error) {
	var notes []models.Note
	err := c.call(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(id)+"/children", nil, &notes)
	return notes, err
}

func (c *Client) CreateNote(ctx context.Context) (*models.Note, error) {
	var n models.Note
	if err := c.call(ctx, http.MethodPost, "/api/notes", nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) CreateChild(ctx context.Context, parentID string) (*models.Note, error) {
	var n models.Note
	if err := c.call(ctx, http.MethodPost, "/api/notes/"+url.PathEscape(parentID)+"/children", nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) UpdateNote(ctx context.Context, id string, upd models.NoteUpdate) (*models.Note, error) {
	var n models.Note
	if err := c.call(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(id), upd, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), nil, nil)
}

func (c *Client) MentionedBy(ctx context.Context, id string) ([]models.Note, error) {
	var notes []models.Note
	err := c.call(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(id)+"/mentioned-by", nil, &notes)
	return notes, err
}

func (c *Client) Collapsed(ctx context.Context, noteID, itemID string) (bool, error) {
	var st models.NoteUIState
	err := c.call(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(noteID)+"/ui/"+url.PathEscape(itemID), nil, &st)
	return st.Collapsed, err
}

func (c *Client) SetCollapsed(ctx context.Context, noteID, itemID string, collapsed bool) (bool, error) {
	var st models.NoteUIState
	err := c.call(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(noteID)+"/ui/"+url.PathEscape(itemID),
		map[string]bool{"collapsed": collapsed}, &st)
	return st.Collapsed, err
}

// Search

func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.Note, error) {
	var notes []models.Note
	q := limitQuery(url.Values{"q": {query}}, limit)
	err := c.call(ctx, http.MethodGet, withQuery("/api/search", q), nil, &notes)
	return notes, err
}

func (c *Client) SearchOrRecent(ctx context.Context, query string, limit int) ([]models.Note, error) {
	var notes []models.Note
	q := limitQuery(url.Values{"q": {query}}, limit)
	err := c.call(ctx, http.MethodGet, withQuery("/api/search-or-recent", q), nil, &notes)
	return notes, err
}

func (c *Client) Recent(ctx context.Context, limit int) ([]models.Note, error) {
	var notes []models.Note
	err := c.call(ctx, http.MethodGet, withQuery("/api/recent", limitQuery(url.Values{}, limit)), nil, &notes)
	return notes, err
}

func (c *Client) SimilarNotes(ctx context.Context, id string, limit int) ([]models.Note, error) {
	var notes []models.Note
	path := withQuery("/api/notes/"+url.PathEscape(id)+"/similar", limitQuery(url.Values{}, limit))
	err := c.call(ctx, http.MethodGet, path, nil, &notes)
	return notes, err
}

func (c *Client) SimilarToText(ctx context.Context, text string, limit int) ([]models.Note, error) {
	var notes []models.Note
	q := limitQuery(url.Values{"q": {text}}, limit)
	err := c.call(ctx, http.MethodGet, withQuery("/api/similar", q), nil, &notes)
	return notes, err
}

// Canvas

func (c *Client) Canvas(ctx context.Context) (*models.CanvasView, error) {
	var cv models.CanvasView
	if err := c.call(ctx, http.MethodGet, "/api/canvas", nil, &cv); err != nil {
		return nil, err
	}
	return &cv, nil
}

func (c *Client) SetOrigin(ctx context.Context, canvasID string, origin geom.Vec) error {
	return c.call(ctx, http.MethodPut, "/api/canvases/"+url.PathEscape(canvasID)+"/origin", origin, nil)
}

func (c *Client) CreateNoteOnCanvas(ctx context.Context, canvasID string, pos geom.Vec) (*models.PlacedNote, error) {
	var placed models.PlacedNote
	err := c.call(ctx, http.MethodPost, "/api/canvases/"+url.PathEscape(canvasID)+"/items",
		map[string]any{"position": pos}, &placed)
	if err != nil {
		return nil, err
	}
	return &placed, nil
}

func (c *Client) AddNoteToCanvas(ctx context.Context, canvasID, noteID string, pos geom.Vec) (*models.CanvasItem, error) {
	var placed models.PlacedNote
	err := c.call(ctx, http.MethodPost, "/api/canvases/"+url.PathEscape(canvasID)+"/items",
		map[string]any{"note_id": noteID, "position": pos}, &placed)
	if err != nil {
		return nil, err
	}
	return &placed.Item, nil
}

func (c *Client) Item(ctx context.Context, itemID string) (*models.CanvasItem, error) {
	var it models.CanvasItem
	if err := c.call(ctx, http.MethodGet, "/api/items/"+url.PathEscape(itemID), nil, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) SetPosition(ctx context.Context, itemID string, pos geom.Vec) error {
	return c.call(ctx, http.MethodPut, "/api/items/"+url.PathEscape(itemID)+"/position", pos, nil)
}

func (c *Client) RemoveItem(ctx context.Context, itemID string) error {
	return c.call(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(itemID), nil, nil)
}

// Embeddings

func (c *Client) EmbedAll(ctx context.Context) (*embedding.Status, error) {
	var st embedding.Status
	if err := c.call(ctx, http.MethodPost, "/api/embeddings/run", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) EmbeddingStatus(ctx context.Context) (*embedding.Status, error) {
	var st embedding.Status
	if err := c.call(ctx, http.MethodGet, "/api/embeddings/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) EmbedNote(ctx context.Context, id string) (*models.Note, error) {
	var n models.Note
	if err := c.call(ctx, http.MethodPost, "/api/notes/"+url.PathEscape(id)+"/embedding", nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) RemoveAllEmbeddings(ctx context.Context) (int64, error) {
	var res struct {
		Cleared int64 `json:"cleared"`
	}
	err := c.call(ctx, http.MethodDelete, "/api/embeddings", nil, &res)
	return res.Cleared, err
}

// Events

// Events opens the change feed. The returned channel is closed when ctx is
// cancelled or the connection drops.
func (c *Client) Events(ctx context.Context) (<-chan events.Event, error) {
	u, err := url.Parse(c.baseURL + "/api/events")
	if err != nil {
		return nil, fmt.Errorf("parse events url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, decodeResponse(resp, nil)
		}
		return nil, fmt.Errorf("dial events: %w", err)
	}

	out := make(chan events.Event)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var ev events.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
