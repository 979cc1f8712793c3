// Package geom provides the 2D geometry kernel used by the simulator and the trace
// analyzer: vectors, oriented rectangles, containment and intersection tests.
//
// All angles are in radians, counter-clockwise from +x.
package geom

import "math"

// Vec2 is a 2D point or vector in metres.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// V is shorthand for Vec2{x, y}.
func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

// Unit returns the unit vector pointing along heading.
func Unit(heading float64) Vec2 {
	return Vec2{X: math.Cos(heading), Y: math.Sin(heading)}
}

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Scale(f float64) Vec2 { return Vec2{a.X * f, a.Y * f} }
func (a Vec2) Dot(b Vec2) float64 { return a.X*b.X + a.Y*b.Y }
func (a Vec2) Cross(b Vec2) float64 { return a.X*b.Y - a.Y*b.X }
func (a Vec2) Norm() float64 { return math.Hypot(a.X, a.Y) }
func (a Vec2) Distance(b Vec2) float64 { return a.Sub(b).Norm() }

// Heading returns the direction of a, in (-π, π].
func (a Vec2) Heading() float64 { return math.Atan2(a.Y, a.X) }

// Rotate rotates a counter-clockwise by theta about the origin.
func (a Vec2) Rotate(theta float64) Vec2 {
	s, c := math.Sincos(theta)
	return Vec2{X: c*a.X - s*a.Y, Y: s*a.X + c*a.Y}
}

// RotateAbout rotates p counter-clockwise by theta about pivot.
func RotateAbout(p, pivot Vec2, theta float64) Vec2 {
	return p.Sub(pivot).Rotate(theta).Add(pivot)
}

// NormalizeAngle maps theta into (-π, π].
func NormalizeAngle(theta float64) float64 {
	theta = math.Mod(theta, 2*math.Pi)
	if theta <= -math.Pi {
		theta += 2 * math.Pi
	} else if theta > math.Pi {
		theta -= 2 * math.Pi
	}
	return theta
}

// SignedAngle returns the angle from a to b, positive when counter-clockwise,
// normalized to (-π, π]. Zero-length inputs yield 0.
func SignedAngle(a, b Vec2) float64 {
	if a.Norm() == 0 || b.Norm() == 0 {
		return 0
	}
	return NormalizeAngle(math.Atan2(a.Cross(b), a.Dot(b)))
}

// PointForward returns the point reached from base by travelling xShift metres along
// forward and yShift metres sideways. The point is obtained by projecting forward by the
// hypotenuse and rotating about base by atan2(|yShift|, xShift); a positive yShift shifts
// to the right of forward, a negative one to the left. forward must be a unit vector.
func PointForward(base, forward Vec2, xShift, yShift float64) Vec2 {
	dist := math.Hypot(xShift, yShift)
	fwd := base.Add(forward.Scale(dist))
	angle := math.Atan2(math.Abs(yShift), xShift)
	if yShift > 0 {
		angle = -angle
	}
	return RotateAbout(fwd, base, angle)
}
