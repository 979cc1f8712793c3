// Package kinematics holds the closed-form longitudinal motion used to advance the ego
// under braking. All distances are in metres, velocities in m/s, decelerations in m/s²
// (positive) and times in seconds.
package kinematics

import "math"

// DecelerateStep brakes from v at a constant decel over dt seconds.
// If the vehicle stops before dt expires it stays stopped for the remainder of the step,
// so the returned distance is never negative and never overshoots the stopping point.
// Returns (distance travelled, new velocity).
func DecelerateStep(v, decel, dt float64) (float64, float64) {
	if v <= 0 {
		return 0, 0
	}
	if decel <= 0 {
		return v * dt, v
	}
	tToStop := v / decel
	if tToStop <= dt {
		// Stops mid-step.
		return v * tToStop / 2, 0
	}
	return v*dt - 0.5*decel*dt*dt, v - decel*dt
}

// BrakingDistance returns the distance needed to stop from v at a constant decel.
func BrakingDistance(v, decel float64) float64 {
	if v <= 0 {
		return 0
	}
	if decel <= 0 {
		return math.Inf(1)
	}
	return (v * v) / (2 * decel)
}

// StoppingTime returns the time needed to stop from v at a constant decel.
func StoppingTime(v, decel float64) float64 {
	if v <= 0 {
		return 0
	}
	if decel <= 0 {
		return math.Inf(1)
	}
	return v / decel
}
