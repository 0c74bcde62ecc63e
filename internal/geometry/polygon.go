package geometry

// IsSimpleQuad reports whether four points, taken in order and closed back to
// the first, form a polygon whose edges do not cross each other. Only the two
// pairs of opposite edges can intersect in a quadrilateral.
func IsSimpleQuad(pts []Point) bool {
	if len(pts) != 4 {
		return false
	}
	if segmentsIntersect(pts[0], pts[1], pts[2], pts[3]) {
		return false
	}
	return !segmentsIntersect(pts[1], pts[2], pts[3], pts[0])
}

// segmentsIntersect reports a proper or touching intersection of ab and cd.
func segmentsIntersect(a, b, c, d Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(c, d, a):
		return true
	case d2 == 0 && onSegment(c, d, b):
		return true
	case d3 == 0 && onSegment(a, b, c):
		return true
	case d4 == 0 && onSegment(a, b, d):
		return true
	}
	return false
}

func onSegment(a, b, p Point) bool {
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= p.Y && p.Y <= max(a.Y, b.Y)
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
