package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishIsUserScoped(t *testing.T) {
	h := NewHub(nil)
	alice, cancelA := h.Subscribe("alice")
	defer cancelA()
	bob, cancelB := h.Subscribe("bob")
	defer cancelB()

	h.Publish(Event{Type: NoteCreated, UserID: "alice", NoteID: "n1"})

	select {
	case e := <-alice:
		assert.Equal(t, NoteCreated, e.Type)
		assert.Equal(t, "n1", e.NoteID)
		assert.False(t, e.At.IsZero())
	default:
		t.Fatal("alice did not receive her event")
	}
	select {
	case e := <-bob:
		t.Fatalf("bob received %v", e)
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe("u")
	defer cancel()

	for i := 0; i < subscriberBuffer*2; i++ {
		h.Publish(Event{Type: ItemMoved, UserID: "u"})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestCancelClosesOnce(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe("u")
	require.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.Subscribers())

	// Publishing after cancel must not panic on the closed channel.
	h.Publish(Event{Type: NoteDeleted, UserID: "u"})
}

func TestClose(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe("u")
	h.Close()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	late, _ := h.Subscribe("u")
	_, open = <-late
	assert.False(t, open)
}

func TestConcurrentPublish(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe("u")
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 4; j++ {
				h.Publish(Event{Type: NoteUpdated, UserID: "u"})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ch, 32)
}

func TestNilHubPublish(t *testing.T) {
	var h *Hub
	h.Publish(Event{Type: NoteCreated})
}
