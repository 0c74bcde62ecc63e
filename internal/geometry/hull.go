package geometry

import (
	"math"
	"slices"
)

// ConvexHull returns the convex hull of pts in counter-clockwise order
// (monotone chain), without repeating the first point. Duplicate and
// collinear points are dropped.
func ConvexHull(pts []Point) []Point {
	p := slices.Clone(pts)
	slices.SortFunc(p, func(a, b Point) int {
		if a.X != b.X {
			if a.X < b.X {
				return -1
			}
			return 1
		}
		switch {
		case a.Y < b.Y:
			return -1
		case a.Y > b.Y:
			return 1
		}
		return 0
	})
	p = slices.Compact(p)
	if len(p) <= 2 {
		return p
	}

	hull := make([]Point, 0, 2*len(p))
	for _, pt := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		pt := p[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return hull[:len(hull)-1]
}

// MinimumAreaRectangle returns the four corners of the smallest rectangle
// enclosing pts, which may be rotated. The rectangle has one side on an
// edge of the convex hull. Fewer than three distinct points yield nil.
func MinimumAreaRectangle(pts []Point) []Point {
	hull := ConvexHull(pts)
	if len(hull) < 3 {
		return nil
	}

	best := math.Inf(1)
	var u, v Point
	var minS, maxS, minT, maxT float64
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		l := math.Hypot(b.X-a.X, b.Y-a.Y)
		if l == 0 {
			continue
		}
		eu := Point{X: (b.X - a.X) / l, Y: (b.Y - a.Y) / l}
		ev := Point{X: -eu.Y, Y: eu.X}
		s0, s1 := math.Inf(1), math.Inf(-1)
		t0, t1 := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			s := p.X*eu.X + p.Y*eu.Y
			t := p.X*ev.X + p.Y*ev.Y
			s0, s1 = math.Min(s0, s), math.Max(s1, s)
			t0, t1 = math.Min(t0, t), math.Max(t1, t)
		}
		if area := (s1 - s0) * (t1 - t0); area < best {
			best = area
			u, v = eu, ev
			minS, maxS, minT, maxT = s0, s1, t0, t1
		}
	}

	at := func(s, t float64) Point {
		return Point{X: u.X*s + v.X*t, Y: u.Y*s + v.Y*t}
	}
	return []Point{at(minS, minT), at(maxS, minT), at(maxS, maxT), at(minS, maxT)}
}
