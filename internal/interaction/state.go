// Package interaction implements the client side of the canvas: the pointer
// state machine that pans the canvas and drags items, the optimistic overlay
// that keeps committed positions on screen until the store acknowledges
// them, and the note editor.
//
// The engine is driven from a single event loop. Handlers never block;
// writes to the store run in their own goroutines and report back on the
// channel returned by Engine.Acks, which the loop feeds to HandleAck.
package interaction

import (
	"errors"
	"fmt"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/geom"
)

var (
	// ErrNotIdle is returned when a drag starts while another interaction
	// is in progress.
	ErrNotIdle = errors.New("interaction already in progress")
	// ErrIndirectClick is returned for pointer events that bubbled up from
	// a child element where only a click on the canvas itself is allowed.
	ErrIndirectClick = errors.New("pointer event did not target the canvas")
)

// Pointer is one pointer event in screen coordinates. Direct is true when
// the event target is the canvas surface itself.
type Pointer struct {
	Pos    geom.Vec
	Direct bool
}

// State is the current interaction. It is one of Idle, Panning or Dragging.
type State interface {
	isState()
}

// Idle means no pointer interaction is in progress.
type Idle struct{}

// Panning follows a drag on the empty canvas surface.
type Panning struct {
	StartMouse  geom.Vec
	StartOrigin geom.Vec
	LiveOrigin  geom.Vec
}

// Dragging follows an item under the pointer.
type Dragging struct {
	Item DragItem
	// Offset is added to the pointer so the item does not jump to it.
	Offset       geom.Vec
	LivePosition geom.Vec
}

func (Idle) isState()     {}
func (Panning) isState()  {}
func (Dragging) isState() {}

// Source tells where a dragged item comes from.
type Source int

const (
	// Placed items already sit on the canvas.
	Placed Source = iota
	// Panel items are dragged in from a search or result list and get a
	// placement on drop.
	Panel
)

func (s Source) String() string {
	switch s {
	case Placed:
		return "placed"
	case Panel:
		return "panel"
	default:
		panic(fmt.Sprintf("interaction: unknown source %d", int(s)))
	}
}

// DragItem identifies what is being dragged. ItemID is set for placed
// items, NoteID always.
type DragItem struct {
	Source Source
	ItemID string
	NoteID string
}

// StateName returns a short name for s. It panics on a State it does not
// know, so adding a variant without handling it fails loudly.
func StateName(s State) string {
	switch s.(type) {
	case Idle:
		return "idle"
	case Panning:
		return "panning"
	case Dragging:
		return "dragging"
	default:
		panic(fmt.Sprintf("interaction: unknown state %T", s))
	}
}
