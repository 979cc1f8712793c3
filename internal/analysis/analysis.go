// Package analysis evaluates recorded runs offline: when the NPC maneuver started,
// whether and when the vehicles collided, and how close they came to colliding in
// terms of time-to-collision (TTC).
package analysis

import (
	"math"

	"github.com/pkg/errors"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/trace"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/vehicle"
)

// Metadata keys holding the maneuver trigger waypoint.
const (
	SwerveKey = "swerve_point"
	UTurnKey  = "uturn_point"
)

// TTC rollout constants, in seconds.
const (
	TTCWindow  = 10.0 // scan ticks up to this long after the maneuver start
	TTCHorizon = 3.0  // longest rollout per scanned tick
	TTCStep    = 0.01 // rollout sub-step
)

// RolloutTTC extrapolates both vehicles at their current, held-constant velocities in
// sub-steps of step seconds and returns the first sub-step time at which their
// footprints overlap, or +Inf if they stay apart for horizon seconds.
func RolloutTTC(ego, npc vehicle.Vehicle, horizon, step float64) float64 {
	for i := 0; ; i++ {
		t := float64(i) * step
		if t >= horizon {
			return math.Inf(1)
		}
		if vehicle.Collides(&ego, &npc) {
			return t
		}
		ego.Advance(ego.Velocity, step)
		npc.Advance(npc.Velocity, step)
	}
}

// ManeuverStart locates the tick at which the NPC began its maneuver: the tick whose
// NPC front centre is nearest the trigger waypoint stored under key, scanning until
// the NPC has driven past it. A trace whose NPC is already past the waypoint starts at
// its first tick.
func ManeuverStart(tr *trace.Trace, key string) (float64, error) {
	wp, err := tr.Point(key)
	if err != nil {
		return 0, err
	}
	boxes, err := tr.Boxes()
	if err != nil {
		return 0, err
	}

	start := tr.Ticks[0].Timestamp
	best := math.Inf(1)
	for _, tick := range tr.Ticks {
		npc := tick.NPC().Vehicle(boxes.NPC)
		toWaypoint := wp.Sub(npc.FrontCenter())
		if toWaypoint.Dot(npc.Forward()) < 0 {
			break
		}
		if d := toWaypoint.Norm(); d < best {
			best = d
			start = tick.Timestamp
		}
	}
	return start, nil
}

// FirstCollision returns the timestamp of the first tick at or after start whose
// footprints overlap.
func FirstCollision(tr *trace.Trace, start float64) (float64, bool, error) {
	boxes, err := tr.Boxes()
	if err != nil {
		return 0, false, err
	}
	for _, tick := range tr.Ticks {
		if tick.Timestamp < start {
			continue
		}
		ego, npc := boxes.Vehicles(tick)
		if vehicle.Collides(&ego, &npc) {
			return tick.Timestamp, true, nil
		}
	}
	return 0, false, nil
}

// MinTTC returns the smallest rollout TTC over the ticks in [start, start+TTCWindow],
// or +Inf when no rollout collides within TTCHorizon.
func MinTTC(tr *trace.Trace, start float64) (float64, error) {
	boxes, err := tr.Boxes()
	if err != nil {
		return 0, err
	}
	ttc := math.Inf(1)
	for _, tick := range tr.Ticks {
		if tick.Timestamp < start || tick.Timestamp > start+TTCWindow {
			continue
		}
		ego, npc := boxes.Vehicles(tick)
		ttc = math.Min(ttc, RolloutTTC(ego, npc, TTCHorizon, TTCStep))
	}
	return ttc, nil
}

// LongitudinalGap returns the bumper-to-bumper gap along the ego heading at the tick
// recorded at ts.
func LongitudinalGap(tr *trace.Trace, ts float64) (float64, error) {
	boxes, err := tr.Boxes()
	if err != nil {
		return 0, err
	}
	tick, err := tr.At(ts)
	if err != nil {
		return 0, err
	}
	ego, npc := boxes.Vehicles(tick)
	return vehicle.LongitudinalGap(&ego, &npc), nil
}

// overlapAt returns the footprint intersection area at the tick recorded at ts.
func overlapAt(tr *trace.Trace, boxes trace.Pair, ts float64) (float64, error) {
	tick, err := tr.At(ts)
	if err != nil {
		return 0, err
	}
	ego, npc := boxes.Vehicles(tick)
	return geom.OverlapArea(ego.Vertices(), npc.Vertices()), nil
}

// maneuverKey picks the metadata key present in tr, preferring the swerve key.
func maneuverKey(tr *trace.Trace) (string, error) {
	switch {
	case tr.HasMetadata(SwerveKey):
		return SwerveKey, nil
	case tr.HasMetadata(UTurnKey):
		return UTurnKey, nil
	default:
		return "", errors.Wrapf(trace.ErrNotFound, "%s: metadata has neither %q nor %q", tr.Name, SwerveKey, UTurnKey)
	}
}
