package maneuver

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
)

// UTurnParams configures a constant-radius U-turn.
type UTurnParams struct {
	Wheelbase         float64 `json:"wheelbase"`           // m
	TurningWheelAngle float64 `json:"turning_wheel_angle"` // rad, mean of inner and outer wheel angles
	TurnLeft          bool    `json:"turn_left"`           // counter-clockwise turn; clockwise otherwise
}

// DefaultUTurnParams returns the reference compact-car U-turn.
func DefaultUTurnParams() UTurnParams {
	return UTurnParams{
		Wheelbase:         2.5,
		TurningWheelAngle: math.Pi / 6,
	}
}

// UTurn rotates the NPC about a fixed turning centre until its heading has reversed,
// then drives straight. The NPC position is the midpoint of the front axle.
type UTurn struct {
	params UTurnParams
	radius float64 // front-axle turning radius, wb/sin(δ)
	offset float64 // rear axle to turning centre, wb/tan(δ)

	center    geom.Vec2
	remaining float64 // heading change still to perform, rad
	final     float64 // heading once the turn completes
}

// NewUTurn returns a U-turn controller for one run.
func NewUTurn(p UTurnParams) *UTurn {
	u := &UTurn{params: p}
	if s := math.Sin(p.TurningWheelAngle); s > 0 && p.Wheelbase > 0 {
		u.radius = p.Wheelbase / s
		u.offset = p.Wheelbase / math.Tan(p.TurningWheelAngle)
	}
	return u
}

func (u *UTurn) Kind() Kind { return KindUTurn }

// Params returns the controller's configuration.
func (u *UTurn) Params() UTurnParams { return u.params }

func (u *UTurn) ReferenceOffset() geom.Vec2 {
	return geom.V(-u.params.Wheelbase/2, 0)
}

func (u *UTurn) sign() float64 {
	if u.params.TurnLeft {
		return 1
	}
	return -1
}

// Trigger fixes the turning centre beside the rear axle and records the arc exit and an
// overshoot point beyond it as waypoints.
func (u *UTurn) Trigger(npc *NPC) bool {
	if u.radius <= 0 || math.IsInf(u.radius, 0) {
		log.WithFields(log.Fields{
			"wheelbase":           u.params.Wheelbase,
			"turning_wheel_angle": u.params.TurningWheelAngle,
		}).Warn("uturn: degenerate turning geometry; NPC keeps its lane")
		return false
	}
	fwd := npc.Forward()
	rearAxle := npc.Position.Sub(fwd.Scale(u.params.Wheelbase))
	normal := fwd.Rotate(u.sign() * math.Pi / 2)

	u.center = rearAxle.Add(normal.Scale(u.offset))
	u.remaining = math.Pi
	u.final = geom.NormalizeAngle(npc.Heading + u.sign()*math.Pi)

	exit := geom.RotateAbout(npc.Position, u.center, u.sign()*math.Pi)
	npc.Waypoints = []geom.Vec2{exit, exit.Add(geom.Unit(u.final).Scale(dummyDistance))}
	npc.WaypointIdx = 0
	return true
}

// Step rotates the NPC about the turning centre by Δs/R, clamped to the turn still
// remaining; once the heading has reversed it drives straight.
func (u *UTurn) Step(npc *NPC, dt float64) {
	ds := npc.Cruise * dt
	if u.remaining <= 0 {
		npc.AngularSpeed = 0
		npc.driveStraight(ds)
		return
	}

	delta := math.Min(ds/u.radius, u.remaining)
	npc.Position = geom.RotateAbout(npc.Position, u.center, u.sign()*delta)
	npc.Heading += u.sign() * delta
	npc.AngularSpeed = u.sign() * npc.Cruise / u.radius
	u.remaining -= delta

	if u.remaining <= 0 {
		npc.Heading = u.final
		npc.advanceWaypoint()
		npc.Done = true
	}
}
