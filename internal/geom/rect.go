package geom

import (
	"math"

	polyclip "github.com/akavel/polyclip-go"
)

// Corner indices into a Rect.
const (
	FrontRight = iota
	FrontLeft
	RearLeft
	RearRight
)

// Rect is an oriented rectangle given by its four corners in the fixed winding order
// front-right, front-left, rear-left, rear-right (counter-clockwise).
type Rect [4]Vec2

// OrientedRect builds the rectangle of the given length (along heading) and width
// centred on center.
func OrientedRect(center Vec2, heading, length, width float64) Rect {
	dx, dy := length/2, width/2
	local := Rect{
		{X: dx, Y: -dy},  // front-right
		{X: dx, Y: dy},   // front-left
		{X: -dx, Y: dy},  // rear-left
		{X: -dx, Y: -dy}, // rear-right
	}
	var r Rect
	for i, p := range local {
		r[i] = p.Rotate(heading).Add(center)
	}
	return r
}

// Edges returns the four edges of r as (start, end) pairs following the winding order.
func (r Rect) Edges() [4][2]Vec2 {
	return [4][2]Vec2{
		{r[0], r[1]},
		{r[1], r[2]},
		{r[2], r[3]},
		{r[3], r[0]},
	}
}

// Center returns the centroid of r.
func (r Rect) Center() Vec2 {
	return r[0].Add(r[1]).Add(r[2]).Add(r[3]).Scale(0.25)
}

// Heading re-derives the orientation of r from its right-hand edge (rear-right to
// front-right).
func (r Rect) Heading() float64 {
	return r[FrontRight].Sub(r[RearRight]).Heading()
}

// side returns the signed area of the triangle (a, b, p): positive when p lies to the
// left of the directed line a→b, zero when collinear.
func side(p, a, b Vec2) float64 {
	return b.Sub(a).Cross(p.Sub(a))
}

// PointInRect reports whether p lies inside r or on its boundary.
func PointInRect(p Vec2, r Rect) bool {
	allPos, allNeg := true, true
	for _, e := range r.Edges() {
		s := side(p, e[0], e[1])
		allPos = allPos && s >= 0
		allNeg = allNeg && s <= 0
	}
	return allPos || allNeg
}

// SegmentsIntersect reports whether segment ab crosses or touches segment cd: each
// segment's endpoints must lie on opposite sides of (or on) the other's supporting line.
func SegmentsIntersect(a, b, c, d Vec2) bool {
	d1, d2 := side(a, c, d), side(b, c, d)
	d3, d4 := side(c, a, b), side(d, a, b)
	if d1 == 0 && d2 == 0 && d3 == 0 && d4 == 0 {
		// Collinear: the orientation test is satisfied trivially, so require the
		// segments' extents to overlap as well.
		return spanOverlap(a.X, b.X, c.X, d.X) && spanOverlap(a.Y, b.Y, c.Y, d.Y)
	}
	return d1*d2 <= 0 && d3*d4 <= 0
}

func spanOverlap(a0, a1, b0, b1 float64) bool {
	return math.Max(math.Min(a0, a1), math.Min(b0, b1)) <= math.Min(math.Max(a0, a1), math.Max(b0, b1))
}

// IsCollision reports whether two oriented rectangles overlap or touch.
//
// Vertex containment is checked both ways first; the edge-crossing pass catches thin
// overlaps where no corner of either rectangle lies inside the other.
func IsCollision(a, b Rect) bool {
	for _, p := range b {
		if PointInRect(p, a) {
			return true
		}
	}
	for _, q := range a {
		if PointInRect(q, b) {
			return true
		}
	}
	for _, ea := range a.Edges() {
		for _, eb := range b.Edges() {
			if SegmentsIntersect(ea[0], ea[1], eb[0], eb[1]) {
				return true
			}
		}
	}
	return false
}

// OverlapArea returns the area (m²) of the intersection of a and b, 0 when they are
// disjoint or only touch.
func OverlapArea(a, b Rect) float64 {
	subject := polyclip.Polygon{toContour(a)}
	clipping := polyclip.Polygon{toContour(b)}

	var area float64
	for _, c := range subject.Construct(polyclip.INTERSECTION, clipping) {
		area += shoelace(c)
	}
	return area
}

func toContour(r Rect) polyclip.Contour {
	c := make(polyclip.Contour, len(r))
	for i, p := range r {
		c[i] = polyclip.Point{X: p.X, Y: p.Y}
	}
	return c
}

func shoelace(c polyclip.Contour) float64 {
	if len(c) < 3 {
		return 0
	}
	var sum float64
	for i := range c {
		j := (i + 1) % len(c)
		sum += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return math.Abs(sum) / 2
}
