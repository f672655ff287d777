package geom

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVecArithmetic(t *testing.T) {
	a, b := V(1, 2), V(3, -5)
	assert.Equal(t, V(4, -3), a.Add(b))
	assert.Equal(t, V(-2, 7), a.Sub(b))
	assert.Equal(t, V(2.5, 5), a.Scale(2.5))
}

func TestCanvasScreenRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	coord := func() float64 { return (rng.Float64() - 0.5) * 1e4 }

	for i := 0; i < 2000; i++ {
		origin := V(coord(), coord())
		center := V(coord(), coord())
		zoom := math.Exp((rng.Float64() - 0.5) * 6)
		p := V(coord(), coord())

		got := CanvasToScreen(ScreenToCanvas(p, origin, zoom, center), origin, zoom, center)
		require.Truef(t, got.ApproxEqual(p, 1e-6), "round trip of %v with zoom %v gave %v", p, zoom, got)
	}
}

func TestZoomCenterStaysFixed(t *testing.T) {
	center := V(800, 450)
	before := NewCamera(Vec{}, center)
	after := before
	for i := 0; i < 10; i++ {
		after = after.Wheel(-1)
	}
	require.Greater(t, after.Zoom, before.Zoom)

	assert.True(t, before.ScreenToCanvas(center).ApproxEqual(after.ScreenToCanvas(center), 1e-9))
}

func TestScreenToCanvasAtUnitZoom(t *testing.T) {
	c := NewCamera(V(10, 20), V(500, 500))
	assert.Equal(t, V(90, 80), c.ScreenToCanvas(V(100, 100)))
}

func TestWheel(t *testing.T) {
	c := NewCamera(Vec{}, Vec{})
	assert.InDelta(t, 1+ZoomStep, c.Wheel(-3).Zoom, 1e-12)
	assert.InDelta(t, 1-ZoomStep, c.Wheel(2).Zoom, 1e-12)
	assert.Equal(t, 1.0, c.Wheel(0).Zoom)

	c.Zoom = MinZoom
	assert.Equal(t, MinZoom, c.Wheel(1).Zoom)
}

func TestCameraValidate(t *testing.T) {
	assert.NoError(t, NewCamera(Vec{}, Vec{}).Validate())
	assert.Error(t, Camera{Zoom: 0}.Validate())
	assert.Error(t, Camera{Zoom: math.NaN()}.Validate())
	assert.Error(t, Camera{Zoom: 1, Origin: V(math.Inf(1), 0)}.Validate())
}

func TestComputeMinimap(t *testing.T) {
	_, ok := ComputeMinimap(nil, Vec{})
	assert.False(t, ok)

	m, ok := ComputeMinimap([]Vec{V(0, 0), V(200, 50), V(-100, 400)}, V(5, 5))
	require.True(t, ok)
	assert.Equal(t, Bounds{Min: V(-100, 0), Max: V(300, 500)}, m.Bounds)
	assert.InDelta(t, 150.0/500.0, m.Scale, 1e-12)
	assert.Equal(t, V(-95, 5), m.Viewport)
	assert.Equal(t, V(100, 0), m.RelativeTo(V(0, 0)))

	small, _ := ComputeMinimap([]Vec{V(3, 3)}, Vec{})
	assert.Equal(t, 1.0, small.Scale)
}
