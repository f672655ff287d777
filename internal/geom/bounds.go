package geom

// Minimap sizing: every item is drawn as an ItemSize square and the minimap's
// longer side never exceeds MinimapMaxDim.
const (
	ItemSize      = 100
	MinimapMaxDim = 150
)

// Bounds is an axis-aligned box in canvas space.
type Bounds struct {
	Min Vec `json:"min"`
	Max Vec `json:"max"`
}

func (b Bounds) Width() float64  { return b.Max.X - b.Min.X }
func (b Bounds) Height() float64 { return b.Max.Y - b.Min.Y }

// Minimap describes how the item layout is drawn in the overview widget.
type Minimap struct {
	Bounds Bounds  `json:"bounds"`
	Scale  float64 `json:"scale"`
	// Viewport is the top-left of the visible area relative to Bounds.Min.
	Viewport Vec `json:"viewport"`
}

// ItemBounds returns the box covering every position, each extended by
// ItemSize. ok is false when positions is empty.
func ItemBounds(positions []Vec) (b Bounds, ok bool) {
	if len(positions) == 0 {
		return Bounds{}, false
	}
	b = Bounds{Min: positions[0], Max: positions[0]}
	for _, p := range positions[1:] {
		b.Min.X = min(b.Min.X, p.X)
		b.Min.Y = min(b.Min.Y, p.Y)
		b.Max.X = max(b.Max.X, p.X)
		b.Max.Y = max(b.Max.Y, p.Y)
	}
	b.Max = b.Max.Add(V(ItemSize, ItemSize))
	return b, true
}

// ComputeMinimap lays out the minimap for the given item positions and canvas
// origin. The scale never magnifies.
func ComputeMinimap(positions []Vec, origin Vec) (Minimap, bool) {
	b, ok := ItemBounds(positions)
	if !ok {
		return Minimap{}, false
	}
	dim := max(b.Width(), b.Height())
	return Minimap{
		Bounds:   b,
		Scale:    min(MinimapMaxDim/dim, 1),
		Viewport: b.Min.Add(origin),
	}, true
}

// RelativeTo translates p into the minimap's coordinate frame.
func (m Minimap) RelativeTo(p Vec) Vec {
	return p.Sub(m.Bounds.Min)
}
