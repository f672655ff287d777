package geom

import "fmt"

// ZoomStep is the multiplicative change applied per wheel tick.
const ZoomStep = 0.05

// Zoom limits keep the transform invertible and the canvas usable.
const (
	MinZoom = 0.05
	MaxZoom = 20
)

// Camera describes how canvas space maps onto the screen. Origin is the
// persisted pan offset, Zoom the scale factor and Center the screen point that
// stays fixed while Zoom changes (usually the viewport center).
type Camera struct {
	Origin Vec     `json:"origin"`
	Zoom   float64 `json:"zoom"`
	Center Vec     `json:"center"`
}

// NewCamera returns a camera at zoom 1 centered on center.
func NewCamera(origin, center Vec) Camera {
	return Camera{Origin: origin, Zoom: 1, Center: center}
}

// Validate rejects cameras whose transform cannot be inverted.
func (c Camera) Validate() error {
	if !(c.Zoom > 0) {
		return fmt.Errorf("zoom must be positive, got %v", c.Zoom)
	}
	if !c.Origin.Finite() || !c.Center.Finite() {
		return fmt.Errorf("camera has non-finite origin or center")
	}
	return nil
}

// offset is K = origin + center*(1-zoom).
func offset(origin Vec, zoom float64, center Vec) Vec {
	return origin.Add(center.Scale(1 - zoom))
}

// ScreenToCanvas maps a screen position to canvas space: (p - K) / zoom.
func ScreenToCanvas(p, origin Vec, zoom float64, center Vec) Vec {
	return p.Sub(offset(origin, zoom, center)).Scale(1 / zoom)
}

// CanvasToScreen is the inverse of ScreenToCanvas: p*zoom + K.
func CanvasToScreen(p, origin Vec, zoom float64, center Vec) Vec {
	return p.Scale(zoom).Add(offset(origin, zoom, center))
}

func (c Camera) ScreenToCanvas(p Vec) Vec {
	return ScreenToCanvas(p, c.Origin, c.Zoom, c.Center)
}

func (c Camera) CanvasToScreen(p Vec) Vec {
	return CanvasToScreen(p, c.Origin, c.Zoom, c.Center)
}

// WithOrigin returns a copy of c panned to origin.
func (c Camera) WithOrigin(origin Vec) Camera {
	c.Origin = origin
	return c
}

// Wheel applies one scroll event. Negative deltaY zooms in, positive zooms
// out, zero leaves the zoom unchanged. The result is clamped to
// [MinZoom, MaxZoom].
func (c Camera) Wheel(deltaY float64) Camera {
	switch {
	case deltaY < 0:
		c.Zoom *= 1 + ZoomStep
	case deltaY > 0:
		c.Zoom *= 1 - ZoomStep
	}
	c.Zoom = min(max(c.Zoom, MinZoom), MaxZoom)
	return c
}
