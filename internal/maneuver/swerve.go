package maneuver

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
)

// minLookahead below which the pursuit law is not evaluated for the tick.
const minLookahead = 1e-6 // metres

// minLateralVelocity below which a swerve would run out to an unbounded waypoint.
const minLateralVelocity = 1e-6 // m/s

// waypointReach is the multiple of the per-tick travel distance within which the active
// waypoint counts as reached.
const waypointReach = 1.5

// SwerveParams configures a lateral swerve into the adjacent lane and back.
type SwerveParams struct {
	LateralVelocity float64 `json:"vy"`              // m/s, average lateral speed during the swerve
	ExceedingY      float64 `json:"exceeding_y"`     // m, how far the NPC edge crosses the lane centre line
	SwerveDistance  float64 `json:"swerve_distance"` // m, longitudinal hold inside the ego lane
	Wheelbase       float64 `json:"wheelbase"`       // m
	LaneWidth       float64 `json:"lane_width"`      // m
	SwerveLeft      bool    `json:"swerve_left"`     // swerve to the NPC's left instead of its right
}

// DefaultSwerveParams returns the reference compact-car swerve.
func DefaultSwerveParams() SwerveParams {
	return SwerveParams{
		LateralVelocity: 1.2,
		ExceedingY:      1.0,
		SwerveDistance:  2.0,
		Wheelbase:       2.5,
		LaneWidth:       3.5,
	}
}

// Swerve steers the NPC through three waypoints (into the lane, hold, back out) with a
// pure-pursuit law. The NPC position is the midpoint of the rear axle.
type Swerve struct {
	params SwerveParams
}

// NewSwerve returns a swerve controller for one run.
func NewSwerve(p SwerveParams) *Swerve { return &Swerve{params: p} }

func (s *Swerve) Kind() Kind { return KindSwerve }

// Params returns the controller's configuration.
func (s *Swerve) Params() SwerveParams { return s.params }

func (s *Swerve) ReferenceOffset() geom.Vec2 {
	return geom.V(s.params.Wheelbase/2, 0)
}

// LateralTarget is the lateral excursion of the NPC centre line, measured from its lane
// centre, needed for its edge to exceed the lane line by ExceedingY.
func (s *Swerve) LateralTarget(width float64) float64 {
	return s.params.LaneWidth/2 + s.params.ExceedingY - width/2
}

// Trigger lays out the swerve from the NPC's current front centre and heading. The
// longitudinal run to each lateral waypoint follows from the NPC's velocity split:
// vx/vy metres forward per metre sideways.
func (s *Swerve) Trigger(npc *NPC) bool {
	vy := s.params.LateralVelocity
	if !(vy >= minLateralVelocity && vy < npc.Cruise) {
		log.WithFields(log.Fields{
			"vy":    vy,
			"speed": npc.Cruise,
		}).Warn("swerve: lateral velocity must be positive and below speed; NPC keeps its lane")
		return false
	}
	vx := math.Sqrt(npc.Cruise*npc.Cruise - vy*vy)
	ny := s.LateralTarget(npc.Width)
	xShift := ny * vx / vy

	side := ny // right shift
	if s.params.SwerveLeft {
		side = -ny
	}

	fwd := npc.Forward()
	wp1 := geom.PointForward(npc.FrontCenter(), fwd, xShift, side)
	wp2 := wp1.Add(fwd.Scale(s.params.SwerveDistance))
	wp3 := geom.PointForward(wp2, fwd, xShift, -side)
	dummy := wp3.Add(fwd.Scale(dummyDistance))

	npc.Waypoints = []geom.Vec2{wp1, wp2, wp3, dummy}
	npc.WaypointIdx = 0
	return true
}

// Step advances the NPC along the swerve: waypoint bookkeeping, then the pose update
// with the current yaw rate, then a new yaw rate from the pursuit law.
func (s *Swerve) Step(npc *NPC, dt float64) {
	ds := npc.Cruise * dt
	if npc.Done {
		npc.driveStraight(ds)
		return
	}

	if reached(npc, ds) {
		if npc.last() {
			npc.Done = true
			npc.AngularSpeed = 0
			npc.driveStraight(ds)
			return
		}
		npc.advanceWaypoint()
	}

	npc.Heading += npc.AngularSpeed * dt
	npc.driveStraight(ds)
	pursue(npc)
}

// reached reports whether the front centre is within reach of the active waypoint, or
// has already passed it.
func reached(npc *NPC, ds float64) bool {
	target, ok := npc.Target()
	if !ok {
		return false
	}
	front := npc.FrontCenter()
	ahead := target.Sub(front)
	return ahead.Norm() <= waypointReach*ds || ahead.Dot(npc.Forward()) <= 0
}

// pursue updates the NPC yaw rate towards the active waypoint. The heading error is
// measured from the reference point; the lookahead from the front centre. A
// near-zero lookahead leaves the yaw rate unchanged for the tick.
func pursue(npc *NPC) {
	target, ok := npc.Target()
	if !ok {
		return
	}
	lookahead := target.Distance(npc.FrontCenter())
	if lookahead < minLookahead {
		return
	}
	alpha := geom.SignedAngle(npc.Forward(), target.Sub(npc.Position))
	npc.AngularSpeed = 2 * npc.Cruise * math.Sin(alpha) / lookahead
}
