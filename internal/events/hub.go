// Package events fans out change notifications to live subscribers so
// clients can refresh views without polling.
package events

import (
	"sync"
	"time"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/metrics"
)

// Type names a kind of change.
type Type string

const (
	NoteCreated      Type = "note.created"
	NoteUpdated      Type = "note.updated"
	NoteDeleted      Type = "note.deleted"
	CanvasMoved      Type = "canvas.origin"
	ItemAdded        Type = "item.added"
	ItemMoved        Type = "item.moved"
	ItemRemoved      Type = "item.removed"
	UIStateChanged   Type = "ui.collapsed"
	EmbeddingUpdated Type = "embedding.updated"
)

// Event is one change, delivered only to subscribers of the owning user.
type Event struct {
	Type     Type      `json:"type"`
	UserID   string    `json:"-"`
	NoteID   string    `json:"note_id,omitempty"`
	CanvasID string    `json:"canvas_id,omitempty"`
	ItemID   string    `json:"item_id,omitempty"`
	At       time.Time `json:"at"`
}

// subscriberBuffer is how many events a slow subscriber may lag behind
// before it starts missing events.
const subscriberBuffer = 64

type subscriber struct {
	userID string
	ch     chan Event
}

// Hub is a per-user publish/subscribe fan-out. Publish never blocks: a
// subscriber whose buffer is full drops the event.
type Hub struct {
	metrics *metrics.Metrics

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{metrics: m, subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a subscriber for userID's events. The returned cancel
// function unregisters it and closes the channel; it is safe to call more
// than once.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	s := &subscriber{userID: userID, ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	h.metrics.SubscriberDelta(1)

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			_, ok := h.subs[s]
			delete(h.subs, s)
			h.mu.Unlock()
			if ok {
				close(s.ch)
				h.metrics.SubscriberDelta(-1)
			}
		})
	}
}

// Publish delivers e to every subscriber of e.UserID.
func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.userID != e.UserID {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

// Subscribers reports the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
		delete(h.subs, s)
		h.metrics.SubscriberDelta(-1)
	}
}
