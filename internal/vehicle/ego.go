package vehicle

import (
	"math"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/kinematics"
)

// Ego is the vehicle under test. It travels along its heading and only ever slows down;
// Decel is the currently commanded deceleration (m/s², ≥ 0).
type Ego struct {
	Vehicle
	Decel float64 `json:"decel"`
}

// NewEgo returns an ego centred on position, heading along heading at speed m/s.
func NewEgo(position geom.Vec2, heading, speed, length, width float64) *Ego {
	e := &Ego{Vehicle: New(position, heading, length, width)}
	e.Velocity = e.Forward().Scale(speed)
	return e
}

// Stopped reports whether the ego has come to rest.
func (e *Ego) Stopped() bool { return e.Speed() <= 0 }

// Step advances the ego by dt seconds under the current deceleration. A stopped ego
// does not move.
func (e *Ego) Step(dt float64) {
	if e.Stopped() {
		return
	}
	dist, v := kinematics.DecelerateStep(e.Speed(), e.Decel, dt)
	fwd := e.Forward()
	e.Position = e.Position.Add(fwd.Scale(dist))
	e.Velocity = fwd.Scale(v)
}

// StoppingDistance returns how far the ego would still travel braking at decel, or at
// its current deceleration if that is stronger.
func (e *Ego) StoppingDistance(decel float64) float64 {
	return kinematics.BrakingDistance(e.Speed(), math.Max(decel, e.Decel))
}

// StoppingTime is the time StoppingDistance takes to cover.
func (e *Ego) StoppingTime(decel float64) float64 {
	return kinematics.StoppingTime(e.Speed(), math.Max(decel, e.Decel))
}
