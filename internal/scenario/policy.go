package scenario

import (
	"math"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/analysis"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/maneuver"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/vehicle"
)

// RiskPolicy decides when the ego driver perceives the NPC as a risk.
type RiskPolicy interface {
	DetectRisk(ego *vehicle.Ego, npc *maneuver.NPC) bool
}

// AEBPolicy decides when automatic emergency braking takes over.
type AEBPolicy interface {
	ActivateAEB(ego *vehicle.Ego, npc *maneuver.NPC) bool
}

// LaneBoundary reports a risk once either front corner of the NPC reaches the line
// y = Y, approaching from below, or from above if Below is set.
type LaneBoundary struct {
	Y     float64
	Below bool
}

func (l LaneBoundary) DetectRisk(_ *vehicle.Ego, npc *maneuver.NPC) bool {
	fr, fl := npc.FrontRight().Y, npc.FrontLeft().Y
	if l.Below {
		return math.Min(fr, fl) <= l.Y
	}
	return math.Max(fr, fl) >= l.Y
}

// NeverAEB models a vehicle without emergency braking.
type NeverAEB struct{}

func (NeverAEB) ActivateAEB(*vehicle.Ego, *maneuver.NPC) bool { return false }

// TTCBelow activates AEB once the constant-velocity time-to-collision between the ego
// and the NPC falls below Threshold seconds.
type TTCBelow struct {
	Threshold float64 // s
	Step      float64 // s, rollout sub-step; analysis.TTCStep if zero
}

func (p TTCBelow) ActivateAEB(ego *vehicle.Ego, npc *maneuver.NPC) bool {
	step := p.Step
	if step <= 0 {
		step = analysis.TTCStep
	}
	return analysis.RolloutTTC(ego.Vehicle, npc.Vehicle, p.Threshold, step) < p.Threshold
}
