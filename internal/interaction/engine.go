package interaction

import (
	"context"
	"fmt"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/geom"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/optimistic"
)

// Committer persists the results of interactions. pkg/client implements it
// against the REST API.
type Committer interface {
	SetOrigin(ctx context.Context, canvasID string, origin geom.Vec) error
	SetPosition(ctx context.Context, itemID string, pos geom.Vec) error
	AddNoteToCanvas(ctx context.Context, canvasID, noteID string, pos geom.Vec) (*models.CanvasItem, error)
	CreateNoteOnCanvas(ctx context.Context, canvasID string, pos geom.Vec) (*models.PlacedNote, error)
}

// AckKind tells which write an Ack belongs to.
type AckKind int

const (
	OriginAck AckKind = iota
	PositionAck
	PlacementAck
)

// Ack reports the outcome of one write.
type Ack struct {
	Kind AckKind
	// ItemID is the moved item for PositionAck.
	ItemID string
	Token  optimistic.Token
	// Value is what was written.
	Value geom.Vec
	// Placed is the new placement for PlacementAck.
	Placed *models.PlacedNote
	Err    error
}

const ackBuffer = 64

// Engine is the canvas interaction state machine. Its methods must be called
// from one goroutine.
type Engine struct {
	ctx      context.Context
	commit   Committer
	canvasID string

	camera geom.Camera
	state  State

	// Authoritative values as last seen from the store.
	origin geom.Vec
	items  map[string]models.CanvasItem
	order  []string

	pendingOrigin    *optimistic.Cell[geom.Vec]
	pendingPositions *optimistic.Overlay[string, geom.Vec]

	acks     chan Ack
	inFlight int
}

// NewEngine returns an idle engine showing view. Commits run under ctx;
// center is the screen point kept fixed while zooming.
func NewEngine(ctx context.Context, commit Committer, view *models.CanvasView, center geom.Vec) *Engine {
	e := &Engine{
		ctx:              ctx,
		commit:           commit,
		canvasID:         view.ID,
		camera:           geom.NewCamera(view.Origin, center),
		state:            Idle{},
		pendingOrigin:    optimistic.NewCell[geom.Vec](),
		pendingPositions: optimistic.NewOverlay[string, geom.Vec](),
		acks:             make(chan Ack, ackBuffer),
	}
	e.Sync(view)
	return e
}

// Sync replaces the authoritative canvas state, e.g. after a change event.
// Pending writes keep overriding what view says.
func (e *Engine) Sync(view *models.CanvasView) {
	e.origin = view.Origin
	e.items = make(map[string]models.CanvasItem, len(view.Items))
	e.order = e.order[:0]
	for _, it := range view.Items {
		e.items[it.ID] = it
		e.order = append(e.order, it.ID)
	}
}

// State returns the current interaction.
func (e *Engine) State() State { return e.state }

// Acks delivers write outcomes; pass each to HandleAck.
func (e *Engine) Acks() <-chan Ack { return e.acks }

// InFlight returns the number of writes not yet acknowledged.
func (e *Engine) InFlight() int { return e.inFlight }

// Origin returns the origin to render: the live one while panning, else a
// pending one, else the store's.
func (e *Engine) Origin() geom.Vec {
	if p, ok := e.state.(Panning); ok {
		return p.LiveOrigin
	}
	return e.pendingOrigin.Value(e.origin)
}

// Camera returns the camera to render with.
func (e *Engine) Camera() geom.Camera {
	return e.camera.WithOrigin(e.Origin())
}

// Zoom returns the current zoom factor.
func (e *Engine) Zoom() float64 { return e.camera.Zoom }

// ItemPosition returns the canvas position to render for itemID.
func (e *Engine) ItemPosition(itemID string) (geom.Vec, bool) {
	if d, ok := e.state.(Dragging); ok && d.Item.Source == Placed && d.Item.ItemID == itemID {
		return d.LivePosition, true
	}
	it, ok := e.items[itemID]
	if !ok {
		return geom.Vec{}, false
	}
	return e.pendingPositions.Value(itemID, it.Position), true
}

// Items returns the placed items in store order with rendered positions.
func (e *Engine) Items() []models.CanvasItem {
	out := make([]models.CanvasItem, 0, len(e.order))
	for _, id := range e.order {
		it := e.items[id]
		it.Position, _ = e.ItemPosition(id)
		out = append(out, it)
	}
	return out
}

// Minimap returns the overview of the rendered layout.
func (e *Engine) Minimap() (geom.Minimap, bool) {
	items := e.Items()
	pos := make([]geom.Vec, len(items))
	for i, it := range items {
		pos[i] = it.Position
	}
	return geom.ComputeMinimap(pos, e.Origin())
}

// PointerDownCanvas starts panning. Only a direct press on the canvas pans.
func (e *Engine) PointerDownCanvas(p Pointer) error {
	if _, ok := e.state.(Idle); !ok {
		return fmt.Errorf("pan start while %s: %w", StateName(e.state), ErrNotIdle)
	}
	if !p.Direct {
		return ErrIndirectClick
	}
	origin := e.Origin()
	e.state = Panning{StartMouse: p.Pos, StartOrigin: origin, LiveOrigin: origin}
	return nil
}

// PointerDownItem starts dragging a placed item.
func (e *Engine) PointerDownItem(itemID string, p Pointer) error {
	if _, ok := e.state.(Idle); !ok {
		return fmt.Errorf("item drag start while %s: %w", StateName(e.state), ErrNotIdle)
	}
	pos, ok := e.ItemPosition(itemID)
	if !ok {
		return fmt.Errorf("item %s is not on the canvas", itemID)
	}
	cam := e.Camera()
	offset := cam.CanvasToScreen(pos).Sub(p.Pos)
	e.state = Dragging{
		Item:         DragItem{Source: Placed, ItemID: itemID, NoteID: e.items[itemID].NoteID},
		Offset:       offset,
		LivePosition: pos,
	}
	return nil
}

// StartPanelDrag starts dragging a note in from a side panel. The note is
// placed where it is dropped.
func (e *Engine) StartPanelDrag(noteID string, p Pointer) error {
	if _, ok := e.state.(Idle); !ok {
		return fmt.Errorf("panel drag start while %s: %w", StateName(e.state), ErrNotIdle)
	}
	e.state = Dragging{
		Item:         DragItem{Source: Panel, NoteID: noteID},
		LivePosition: e.Camera().ScreenToCanvas(p.Pos),
	}
	return nil
}

// PointerMove updates the live origin or item position.
func (e *Engine) PointerMove(p Pointer) {
	switch s := e.state.(type) {
	case Idle:
	case Panning:
		s.LiveOrigin = s.StartOrigin.Add(p.Pos.Sub(s.StartMouse).Scale(1 / e.camera.Zoom))
		e.state = s
	case Dragging:
		s.LivePosition = e.Camera().ScreenToCanvas(p.Pos.Add(s.Offset))
		e.state = s
	default:
		panic(fmt.Sprintf("interaction: unknown state %T", s))
	}
}

// PointerUp ends the interaction and commits its result. Ending a pan
// requires a direct event; an indirect one leaves the pan running.
func (e *Engine) PointerUp(p Pointer) error {
	switch s := e.state.(type) {
	case Idle:
		return nil
	case Panning:
		if !p.Direct {
			return ErrIndirectClick
		}
		e.commitOrigin(s.LiveOrigin)
	case Dragging:
		e.commitDrop(s)
	default:
		panic(fmt.Sprintf("interaction: unknown state %T", s))
	}
	e.state = Idle{}
	return nil
}

// PointerLeave ends any interaction as if the pointer was released on the
// canvas.
func (e *Engine) PointerLeave() {
	switch s := e.state.(type) {
	case Idle:
		return
	case Panning:
		e.commitOrigin(s.LiveOrigin)
	case Dragging:
		e.commitDrop(s)
	default:
		panic(fmt.Sprintf("interaction: unknown state %T", s))
	}
	e.state = Idle{}
}

// Wheel zooms around the camera center. It does not affect the drag state.
func (e *Engine) Wheel(deltaY float64) {
	e.camera = e.camera.Wheel(deltaY)
}

// DoubleClick creates a new note at the clicked canvas position.
func (e *Engine) DoubleClick(p Pointer) error {
	if !p.Direct {
		return ErrIndirectClick
	}
	pos := e.Camera().ScreenToCanvas(p.Pos)
	canvasID := e.canvasID
	e.spawn(func(ctx context.Context) Ack {
		placed, err := e.commit.CreateNoteOnCanvas(ctx, canvasID, pos)
		return Ack{Kind: PlacementAck, Value: pos, Placed: placed, Err: err}
	})
	return nil
}

func (e *Engine) commitOrigin(origin geom.Vec) {
	tok := e.pendingOrigin.Set(origin)
	canvasID := e.canvasID
	e.spawn(func(ctx context.Context) Ack {
		err := e.commit.SetOrigin(ctx, canvasID, origin)
		return Ack{Kind: OriginAck, Token: tok, Value: origin, Err: err}
	})
}

func (e *Engine) commitDrop(d Dragging) {
	pos := d.LivePosition
	switch d.Item.Source {
	case Placed:
		itemID := d.Item.ItemID
		tok := e.pendingPositions.Set(itemID, pos)
		e.spawn(func(ctx context.Context) Ack {
			err := e.commit.SetPosition(ctx, itemID, pos)
			return Ack{Kind: PositionAck, ItemID: itemID, Token: tok, Value: pos, Err: err}
		})
	case Panel:
		canvasID, noteID := e.canvasID, d.Item.NoteID
		e.spawn(func(ctx context.Context) Ack {
			item, err := e.commit.AddNoteToCanvas(ctx, canvasID, noteID, pos)
			var placed *models.PlacedNote
			if item != nil {
				placed = &models.PlacedNote{Item: *item}
			}
			return Ack{Kind: PlacementAck, Value: pos, Placed: placed, Err: err}
		})
	default:
		panic(fmt.Sprintf("interaction: unknown source %d", int(d.Item.Source)))
	}
}

func (e *Engine) spawn(write func(ctx context.Context) Ack) {
	e.inFlight++
	go func() {
		ack := write(e.ctx)
		select {
		case e.acks <- ack:
		case <-e.ctx.Done():
		}
	}()
}

// HandleAck applies the outcome of a write. The pending value is dropped
// whether the write succeeded or not, but only if no newer write replaced
// it. On success the written value becomes authoritative until the next
// Sync. The write's error is returned.
func (e *Engine) HandleAck(a Ack) error {
	e.inFlight--
	switch a.Kind {
	case OriginAck:
		if e.pendingOrigin.Resolve(a.Token) && a.Err == nil {
			e.origin = a.Value
		}
	case PositionAck:
		if e.pendingPositions.Resolve(a.ItemID, a.Token) && a.Err == nil {
			if it, ok := e.items[a.ItemID]; ok {
				it.Position = a.Value
				e.items[a.ItemID] = it
			}
		}
	case PlacementAck:
		if a.Err == nil && a.Placed != nil {
			it := a.Placed.Item
			if _, ok := e.items[it.ID]; !ok {
				e.order = append(e.order, it.ID)
			}
			e.items[it.ID] = it
		}
	default:
		panic(fmt.Sprintf("interaction: unknown ack kind %d", int(a.Kind)))
	}
	return a.Err
}
