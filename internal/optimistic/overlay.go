// Package optimistic keeps locally written values visible while the write
// that produced them is in flight against the authoritative store.
//
// A pending entry always wins over the authoritative value. It is removed
// only by resolving it with the token returned when it was written, so a slow
// acknowledgement for an older write never clears a newer one. There is no
// merging: the last local write wins.
package optimistic

import "sync"

// Token identifies one pending write.
type Token uint64

type entry[V any] struct {
	value V
	token Token
}

// Overlay is a set of pending writes keyed by entity id. It is safe for
// concurrent use.
type Overlay[K comparable, V any] struct {
	mu      sync.Mutex
	next    Token
	pending map[K]entry[V]
}

// NewOverlay returns an empty overlay.
func NewOverlay[K comparable, V any]() *Overlay[K, V] {
	return &Overlay[K, V]{pending: make(map[K]entry[V])}
}

// Set records a pending value for key, replacing any earlier one, and
// returns the token that resolves it.
func (o *Overlay[K, V]) Set(key K, value V) Token {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	o.pending[key] = entry[V]{value: value, token: o.next}
	return o.next
}

// Get returns the pending value for key, if any.
func (o *Overlay[K, V]) Get(key K) (V, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.pending[key]
	return e.value, ok
}

// Resolve clears the entry for key if it is still the one created with tok.
// It reports whether anything was removed.
func (o *Overlay[K, V]) Resolve(key K, tok Token) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.pending[key]
	if !ok || e.token != tok {
		return false
	}
	delete(o.pending, key)
	return true
}

// Value returns the pending value for key, or authoritative when there is
// none.
func (o *Overlay[K, V]) Value(key K, authoritative V) V {
	if v, ok := o.Get(key); ok {
		return v
	}
	return authoritative
}

// Len returns the number of pending entries.
func (o *Overlay[K, V]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Cell is an Overlay holding a single value, used for the canvas origin.
type Cell[V any] struct {
	o *Overlay[struct{}, V]
}

func NewCell[V any]() *Cell[V] {
	return &Cell[V]{o: NewOverlay[struct{}, V]()}
}

func (c *Cell[V]) Set(v V) Token { return c.o.Set(struct{}{}, v) }
func (c *Cell[V]) Get() (V, bool) { return c.o.Get(struct{}{}) }
func (c *Cell[V]) Resolve(tok Token) bool { return c.o.Resolve(struct{}{}, tok) }
func (c *Cell[V]) Value(authoritative V) V { return c.o.Value(struct{}{}, authoritative) }
