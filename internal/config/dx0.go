package config

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
)

// Default trigger distances, in metres, for combinations missing from the tables.
const (
	DefaultSwerveDX0 = 16.0
	DefaultUTurnDX0  = 12.0
)

// Lane is the ego lane in a U-turn scenario, counted from the median.
type Lane string

const (
	LaneInnermost Lane = "innermost"
	LaneAdjacent  Lane = "adjacent"
)

// ParseLane validates a lane name. The empty string selects LaneInnermost.
func ParseLane(s string) (Lane, error) {
	switch Lane(s) {
	case "", LaneInnermost:
		return LaneInnermost, nil
	case LaneAdjacent:
		return LaneAdjacent, nil
	default:
		return "", fmt.Errorf("unknown lane %q (want %q or %q)", s, LaneInnermost, LaneAdjacent)
	}
}

// swerveDX0 maps NPC speed (km/h) and lateral velocity (tenths of m/s) to dx0.
var swerveDX0 = map[int]map[int]float64{
	10: {10: 18.0, 12: 16.0, 14: 15.0},
	15: {10: 23.0, 12: 20.0, 14: 17.0},
}

// uturnDX0 maps the ego lane and NPC speed (km/h) to dx0.
var uturnDX0 = map[Lane]map[int]float64{
	LaneInnermost: {10: 12.0, 15: 10.0},
	LaneAdjacent:  {10: 12.0, 15: 10.0},
}

// SwerveDX0 returns the trigger distance for a swerve at NPC speed voKmh with lateral
// velocity vy (m/s).
func SwerveDX0(voKmh, vy float64) float64 {
	if byVY, ok := swerveDX0[int(math.Round(voKmh))]; ok {
		if dx0, ok := byVY[int(math.Round(vy*10))]; ok {
			return dx0
		}
	}
	log.WithFields(log.Fields{
		"vo":  voKmh,
		"vy":  vy,
		"dx0": DefaultSwerveDX0,
	}).Warn("config: no predefined swerve dx0, using default")
	return DefaultSwerveDX0
}

// UTurnDX0 returns the trigger distance for a U-turn at NPC speed voKmh with the ego in
// lane.
func UTurnDX0(lane Lane, voKmh float64) float64 {
	if byVO, ok := uturnDX0[lane]; ok {
		if dx0, ok := byVO[int(math.Round(voKmh))]; ok {
			return dx0
		}
	}
	log.WithFields(log.Fields{
		"lane": lane,
		"vo":   voKmh,
		"dx0":  DefaultUTurnDX0,
	}).Warn("config: no predefined uturn dx0, using default")
	return DefaultUTurnDX0
}
