// Package maneuver implements the scripted NPC: its vehicle record, the waypoint
// state it consumes front to back, and the trajectory controllers (swerve, U-turn)
// that steer it once the scenario triggers the maneuver.
//
// Adding a maneuver only requires implementing Maneuver and registering it in
// Spec.UnmarshalJSON; the scenario loop never needs to change.
package maneuver

import (
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/vehicle"
)

// dummyDistance is how far past the last real waypoint the overshoot waypoint is placed.
const dummyDistance = 10.0 // metres

// NPC is the adversarial vehicle. Position is the maneuver's reference point (see
// Maneuver.ReferenceOffset), not the geometric centre.
type NPC struct {
	vehicle.Vehicle
	Cruise       float64     `json:"cruise"`        // m/s, held constant
	AngularSpeed float64     `json:"angular_speed"` // rad/s, counter-clockwise positive
	Waypoints    []geom.Vec2 `json:"waypoints"`
	WaypointIdx  int         `json:"waypoint_idx"` // only ever increases
	Triggered    bool        `json:"triggered"`
	Done         bool        `json:"done"` // final waypoint reached; steering released
}

// NewNPC places an NPC whose footprint is centred on center. The reference point is
// derived from the maneuver's centre offset.
func NewNPC(center geom.Vec2, heading, cruise, length, width float64, m Maneuver) *NPC {
	offset := m.ReferenceOffset()
	npc := &NPC{
		Vehicle: vehicle.Vehicle{
			Position:     center.Sub(offset.Rotate(heading)),
			Heading:      heading,
			Length:       length,
			Width:        width,
			CenterOffset: offset,
		},
		Cruise: cruise,
	}
	npc.syncVelocity()
	return npc
}

// Target returns the active waypoint, if any.
func (n *NPC) Target() (geom.Vec2, bool) {
	if n.WaypointIdx >= len(n.Waypoints) {
		return geom.Vec2{}, false
	}
	return n.Waypoints[n.WaypointIdx], true
}

// last reports whether the active waypoint is the final (overshoot) one.
func (n *NPC) last() bool { return n.WaypointIdx >= len(n.Waypoints)-1 }

// advanceWaypoint moves to the next waypoint, never past the final one.
func (n *NPC) advanceWaypoint() {
	if !n.last() {
		n.WaypointIdx++
	}
}

// driveStraight moves the reference point ds metres along the current heading.
func (n *NPC) driveStraight(ds float64) {
	n.Position = n.Position.Add(n.Forward().Scale(ds))
}

func (n *NPC) syncVelocity() {
	n.Velocity = n.Forward().Scale(n.Cruise)
}
