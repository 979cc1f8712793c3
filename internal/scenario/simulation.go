// Package scenario implements the ego/NPC safety-scenario simulation loop.
//
// The simulation advances in fixed timesteps. Each tick has four passes:
//
//  1. Collision pass - overlapping footprints end the run; nothing moves afterwards.
//
//  2. Trigger pass - once the bumper-to-bumper gap closes to the trigger distance the
//     NPC maneuver is started.
//
//  3. Braking pass - the risk and AEB policies feed the ego braking state machine.
//
//  4. Motion pass - the ego moves under its current deceleration, which is then
//     updated; the NPC is advanced by its maneuver controller.
package scenario

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/braking"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/config"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/maneuver"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/vehicle"
)

// Simulation is the state of one run. It owns all of its state; independent runs can
// execute concurrently.
type Simulation struct {
	Ego        *vehicle.Ego
	NPC        *maneuver.NPC
	Maneuver   maneuver.Maneuver
	Brake      *braking.Controller
	Risk       RiskPolicy
	AEB        AEBPolicy
	TriggerGap float64 // m, bumper-to-bumper gap at which the maneuver starts

	Time          float64 // s
	Step          float64 // s
	Collision     bool
	CollisionTime float64
	TriggerTime   float64 // -1 until triggered

	Record   bool // keep a Frame per tick in Frames
	Frames   []Frame
	Observer func(Frame) // called with every frame when set

	egoStart float64 // ego distance along its heading at t=0
}

// New assembles a simulation from already placed vehicles. A nil AEB policy never
// activates emergency braking.
func New(ego *vehicle.Ego, npc *maneuver.NPC, m maneuver.Maneuver, risk RiskPolicy, aeb AEBPolicy,
	brake braking.Params, triggerGap, step float64) *Simulation {
	if aeb == nil {
		aeb = NeverAEB{}
	}
	return &Simulation{
		Ego:         ego,
		NPC:         npc,
		Maneuver:    m,
		Brake:       braking.NewController(brake, step),
		Risk:        risk,
		AEB:         aeb,
		TriggerGap:  triggerGap,
		Step:        step,
		TriggerTime: -1,
		egoStart:    ego.Position.Dot(ego.Forward()),
	}
}

// Tick advances the simulation by one timestep. It is a no-op after a collision.
func (s *Simulation) Tick() {
	if s.Collision {
		return
	}

	// Collision pass.
	if vehicle.Collides(&s.Ego.Vehicle, &s.NPC.Vehicle) {
		s.Collision = true
		s.CollisionTime = s.Time
		s.emit()
		return
	}
	s.emit()

	// Trigger pass.
	if !s.NPC.Triggered && vehicle.LongitudinalGap(&s.Ego.Vehicle, &s.NPC.Vehicle) <= s.TriggerGap {
		maneuver.Start(s.NPC, s.Maneuver)
		s.TriggerTime = s.Time
	}

	// Braking pass.
	if s.Risk != nil && s.Risk.DetectRisk(s.Ego, s.NPC) {
		s.Brake.DetectRisk(s.Time)
	}
	if !s.Brake.AEBActivated() && s.AEB.ActivateAEB(s.Ego, s.NPC) {
		s.Brake.ActivateAEB()
	}

	// Motion pass.
	if !s.Ego.Stopped() {
		s.Ego.Step(s.Step)
		s.Ego.Decel = s.Brake.Update(s.Time, s.Ego.Decel)
	}
	maneuver.Advance(s.NPC, s.Maneuver, s.Step)

	s.Time += s.Step
}

// Run ticks until a collision or until maxTime simulated seconds have elapsed.
func (s *Simulation) Run(maxTime float64) Result {
	for !s.Collision && s.Time < maxTime {
		s.Tick()
	}
	return s.Result()
}

// RunContext is Run with cancellation checked between ticks.
func (s *Simulation) RunContext(ctx context.Context, maxTime float64) (Result, error) {
	for !s.Collision && s.Time < maxTime {
		if err := ctx.Err(); err != nil {
			return s.Result(), err
		}
		s.Tick()
	}
	return s.Result(), nil
}

// Result summarises the run so far.
func (s *Simulation) Result() Result {
	peak := s.Brake.PeakDecel()
	return Result{
		Collision:     s.Collision,
		CollisionTime: s.CollisionTime,
		Time:          s.Time,
		TriggerTime:   s.TriggerTime,
		DecisionTime:  s.Brake.DecisionTime(),
		BrakeState:    s.Brake.State(),
		EgoSpeed:      s.Ego.Speed(),
		EgoTravel:     s.Ego.Position.Dot(s.Ego.Forward()) - s.egoStart,

		StoppingDistance: s.Ego.StoppingDistance(peak),
		StoppingTime:     s.Ego.StoppingTime(peak),
	}
}

// Frame returns a snapshot of the current state.
func (s *Simulation) Frame() Frame {
	return Frame{
		Timestamp:  s.Time,
		Ego:        vehicleLog(&s.Ego.Vehicle),
		NPC:        vehicleLog(&s.NPC.Vehicle),
		Decel:      s.Ego.Decel,
		BrakeState: s.Brake.State(),
		Triggered:  s.NPC.Triggered,
		Collision:  s.Collision,
	}
}

func (s *Simulation) emit() {
	if !s.Record && s.Observer == nil {
		return
	}
	f := s.Frame()
	if s.Record {
		s.Frames = append(s.Frames, f)
	}
	if s.Observer != nil {
		s.Observer(f)
	}
}

// Execute builds the simulation described by in, runs it to completion and returns
// its log.
func Execute(in Input, profiles config.Profiles) (Log, error) {
	sim, meta, err := in.Build(profiles)
	if err != nil {
		return Log{}, err
	}
	res := sim.Run(meta.MaxTime)
	return Log{Meta: meta, Result: res, Output: sim.Frames}, nil
}

// RunJSON is the entry point shared by the CLI, WASM and HTTP front ends. It accepts a
// JSON-encoded Input, runs the simulation with the built-in profiles and returns a
// JSON-encoded Log.
func RunJSON(jsonInput string) (string, error) {
	var in Input
	if err := json.Unmarshal([]byte(jsonInput), &in); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	simLog, err := Execute(in, config.Builtin())
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(simLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
