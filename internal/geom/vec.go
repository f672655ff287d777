// Package geom holds the 2D math used by the canvas: vectors, the pan/zoom
// camera transform and the minimap bounds.
package geom

import "math"

// Vec is a point or offset in screen or canvas space.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// V is shorthand for Vec{X: x, Y: y}.
func V(x, y float64) Vec { return Vec{X: x, Y: y} }

func (a Vec) Add(b Vec) Vec { return Vec{a.X + b.X, a.Y + b.Y} }

func (a Vec) Sub(b Vec) Vec { return Vec{a.X - b.X, a.Y - b.Y} }

func (a Vec) Scale(s float64) Vec { return Vec{a.X * s, a.Y * s} }

// ApproxEqual reports whether a and b differ by at most eps on each axis.
func (a Vec) ApproxEqual(b Vec, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps
}

// Finite reports whether both components are finite numbers.
func (a Vec) Finite() bool {
	return !math.IsNaN(a.X) && !math.IsInf(a.X, 0) && !math.IsNaN(a.Y) && !math.IsInf(a.Y, 0)
}
