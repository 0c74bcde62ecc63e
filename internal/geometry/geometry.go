// Package geometry holds the planar primitives shared by the frame and view
// coordinate spaces: points, sizes and axis-aligned rectangles.
package geometry

import "math"

// Point is a location in either frame (sensor) or view (screen) pixels.
// Which space a Point belongs to is determined by the code that produced it.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width" yaml:"width" mapstructure:"width"`
	Height float64 `json:"height" yaml:"height" mapstructure:"height"`
}

// Known reports whether both dimensions are positive. Layouts that are not
// known yet (zero or negative) must short-circuit any view-space mapping.
func (s Size) Known() bool {
	return s.Width > 0 && s.Height > 0
}

// Swapped returns the size with width and height exchanged.
func (s Size) Swapped() Size {
	return Size{Width: s.Height, Height: s.Width}
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y      float64 `json:"y" yaml:"y" mapstructure:"y"`
	Width  float64 `json:"width" yaml:"width" mapstructure:"width"`
	Height float64 `json:"height" yaml:"height" mapstructure:"height"`
}

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Contains reports whether p lies inside r. Bounds are inclusive on all four
// edges, so a point exactly on the border counts as inside.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.MaxX() && p.Y >= r.Y && p.Y <= r.MaxY()
}

// ContainsAll reports whether every point lies inside r.
func (r Rect) ContainsAll(pts []Point) bool {
	for _, p := range pts {
		if !r.Contains(p) {
			return false
		}
	}
	return true
}

// BoundingBox returns the tightest axis-aligned rectangle containing every
// point: origin at (min x, min y), size (max x - min x, max y - min y).
// An empty input yields the zero Rect.
func BoundingBox(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Round rounds v to the nearest integer pixel, halves away from zero.
func Round(v float64) float64 {
	return math.Round(v)
}

// RoundPoint rounds both coordinates with Round.
func RoundPoint(p Point) Point {
	return Point{X: Round(p.X), Y: Round(p.Y)}
}

// Scale multiplies both coordinates by the per-axis factors sx and sy.
func Scale(p Point, sx, sy float64) Point {
	return Point{X: p.X * sx, Y: p.Y * sy}
}
