// Package vehicle defines the rectangular vehicle record shared by the ego, the NPC and
// the trace analyzer.
//
// A Vehicle maintains a reference point (rear axle, front axle, or a recorder's origin)
// rather than its geometric centre; CenterOffset maps one to the other in the body frame.
// Geometry is always derived from the current pose and never cached.
package vehicle

import (
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
)

// Vehicle is the pose, velocity and footprint of a single vehicle.
type Vehicle struct {
	Position     geom.Vec2 `json:"position"`      // reference point, world frame, metres
	Heading      float64   `json:"heading"`       // radians, counter-clockwise from +x
	Velocity     geom.Vec2 `json:"velocity"`      // world frame, m/s
	Length       float64   `json:"length"`        // metres
	Width        float64   `json:"width"`         // metres
	CenterOffset geom.Vec2 `json:"center_offset"` // reference point → geometric centre, body frame
}

// New returns a vehicle whose reference point coincides with its geometric centre.
func New(position geom.Vec2, heading, length, width float64) Vehicle {
	return Vehicle{Position: position, Heading: heading, Length: length, Width: width}
}

// Forward returns the unit heading vector.
func (v *Vehicle) Forward() geom.Vec2 { return geom.Unit(v.Heading) }

// Center returns the geometric centre in world coordinates.
func (v *Vehicle) Center() geom.Vec2 {
	return v.Position.Add(v.CenterOffset.Rotate(v.Heading))
}

// Vertices returns the footprint corners ordered front-right, front-left, rear-left,
// rear-right.
func (v *Vehicle) Vertices() geom.Rect {
	return geom.OrientedRect(v.Center(), v.Heading, v.Length, v.Width)
}

// FrontCenter returns the midpoint of the front bumper.
func (v *Vehicle) FrontCenter() geom.Vec2 {
	return v.Center().Add(v.Forward().Scale(v.Length / 2))
}

// FrontRight returns the front-right corner.
func (v *Vehicle) FrontRight() geom.Vec2 { return v.Vertices()[geom.FrontRight] }

// FrontLeft returns the front-left corner.
func (v *Vehicle) FrontLeft() geom.Vec2 { return v.Vertices()[geom.FrontLeft] }

// Advance moves the reference point by vel*dt. Steered callers rotate their body-frame
// velocity into the world frame before calling.
func (v *Vehicle) Advance(vel geom.Vec2, dt float64) {
	v.Position = v.Position.Add(vel.Scale(dt))
}

// Speed returns the magnitude of the velocity.
func (v *Vehicle) Speed() float64 { return v.Velocity.Norm() }

// Collides reports whether the footprints of a and b overlap or touch.
func Collides(a, b *Vehicle) bool {
	return geom.IsCollision(a.Vertices(), b.Vertices())
}

// LongitudinalGap returns the bumper-to-bumper distance from a to b measured along a's
// heading: the projection of the centre-to-centre vector minus both half lengths.
// Negative values mean b is alongside or behind a.
func LongitudinalGap(a, b *Vehicle) float64 {
	return b.Center().Sub(a.Center()).Dot(a.Forward()) - a.Length/2 - b.Length/2
}
