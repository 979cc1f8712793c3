package scenario

import (
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/braking"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/config"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/maneuver"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/vehicle"
)

// Input is the JSON-serialisable input to Execute and RunJSON. Speeds are in m/s.
type Input struct {
	Env        string          `json:"env,omitempty"`     // profile name; config.DefaultProfile if empty
	Profile    *config.Profile `json:"profile,omitempty"` // explicit geometry, overrides Env
	Maneuver   maneuver.Spec   `json:"maneuver"`
	DX0        float64         `json:"dx0,omitempty"`         // m, trigger gap; looked up from the trigger tables if zero
	InitialGap float64         `json:"initial_gap,omitempty"` // m, start gap if larger than DX0
	EgoSpeed   float64         `json:"ve"`
	NPCSpeed   float64         `json:"vo"`
	Lane       string          `json:"lane,omitempty"` // U-turn ego lane: innermost or adjacent
	Brake      braking.Params  `json:"brake"`
	AEBTTC     float64         `json:"aeb_ttc,omitempty"`  // s, AEB below this TTC; no AEB if zero
	SimStep    float64         `json:"sim_step,omitempty"` // s, per-maneuver default if zero
	MaxTime    float64         `json:"max_time,omitempty"` // s, per-maneuver default if zero
	Record     bool            `json:"record"`             // keep one Frame per tick in the log
}

// Meta holds the resolved parameters a run was executed with.
type Meta struct {
	Maneuver maneuver.Kind `json:"maneuver"`
	Profile  string        `json:"profile"`
	DX0      float64       `json:"dx0"`
	SimStep  float64       `json:"sim_step"`
	MaxTime  float64       `json:"max_time"`
}

// VehicleLog is a point-in-time snapshot of one vehicle.
type VehicleLog struct {
	Center   geom.Vec2 `json:"center"`
	Heading  float64   `json:"heading"`
	Speed    float64   `json:"speed"`
	Vertices geom.Rect `json:"vertices"`
}

func vehicleLog(v *vehicle.Vehicle) VehicleLog {
	return VehicleLog{
		Center:   v.Center(),
		Heading:  v.Heading,
		Speed:    v.Speed(),
		Vertices: v.Vertices(),
	}
}

// Frame is the state of both vehicles at the start of a tick.
type Frame struct {
	Timestamp  float64       `json:"timestamp"` // s
	Ego        VehicleLog    `json:"ego"`
	NPC        VehicleLog    `json:"npc"`
	Decel      float64       `json:"decel"` // m/s²
	BrakeState braking.State `json:"brake_state"`
	Triggered  bool          `json:"triggered"`
	Collision  bool          `json:"collision"`
}

// Result summarises a finished run.
type Result struct {
	Collision     bool          `json:"collision"`
	CollisionTime float64       `json:"collision_time"` // s, valid if Collision
	Time          float64       `json:"time"`           // s, simulated time at the end of the run
	TriggerTime   float64       `json:"trigger_time"`   // s, -1 if the maneuver never started
	DecisionTime  float64       `json:"decision_time"`  // s, -1 if no risk was detected
	BrakeState    braking.State `json:"brake_state"`
	EgoSpeed      float64       `json:"ego_speed"`  // m/s, at the end of the run
	EgoTravel     float64       `json:"ego_travel"` // m, distance covered by the ego

	// Remaining distance (m) and time (s) for the ego to stop from its final speed at
	// the deceleration its braking phase ramps towards. Zero once the ego has stopped.
	StoppingDistance float64 `json:"stopping_distance"`
	StoppingTime     float64 `json:"stopping_time"`
}

// Log is the complete output of a run.
type Log struct {
	Meta   Meta    `json:"simulation_meta"`
	Result Result  `json:"result"`
	Output []Frame `json:"output,omitempty"`
}
