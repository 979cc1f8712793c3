package scenario

import (
	"fmt"
	"math"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/braking"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/config"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/maneuver"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/vehicle"
)

// Reference timesteps and run bounds, in seconds.
const (
	SwerveStep    = 0.025
	SwerveHorizon = 10.0
	UTurnStep     = 0.02
	UTurnHorizon  = 15.0
)

// Config holds the parameters shared by every scenario. The NPC drives towards the
// ego in the opposite direction; both start on the x axis with their bumpers
// max(DX0, InitialGap) metres apart.
type Config struct {
	Profile    config.Profile
	DX0        float64 // m, trigger gap
	InitialGap float64 // m
	EgoSpeed   float64 // m/s
	NPCSpeed   float64 // m/s
	Brake      braking.Params
	AEB        AEBPolicy // NeverAEB if nil
	Step       float64   // s, per-scenario default if zero
}

func (c Config) withDefaults(step float64) Config {
	if c.Profile.LaneWidth == 0 {
		c.Profile = config.Builtin().Lookup(c.Profile.Name)
	}
	if c.Step == 0 {
		c.Step = step
	}
	return c
}

func (c Config) validate() error {
	if err := c.Profile.Validate(); err != nil {
		return err
	}
	switch {
	case c.Step <= 0:
		return fmt.Errorf("sim step must be positive, got %g", c.Step)
	case c.DX0 < 0:
		return fmt.Errorf("dx0 must not be negative, got %g", c.DX0)
	case c.EgoSpeed < 0 || c.NPCSpeed < 0:
		return fmt.Errorf("speeds must not be negative (ve=%g, vo=%g)", c.EgoSpeed, c.NPCSpeed)
	}
	return nil
}

// startGap is the bumper-to-bumper gap at t=0.
func (c Config) startGap() float64 { return math.Max(c.DX0, c.InitialGap) }

// placeNPC puts the NPC footprint centre on the x axis, facing the ego.
func (c Config) placeNPC(m maneuver.Maneuver) *maneuver.NPC {
	p := c.Profile
	x := c.startGap() + (p.EgoLength+p.NPCLength)/2
	return maneuver.NewNPC(geom.V(x, 0), math.Pi, c.NPCSpeed, p.NPCLength, p.NPCWidth, m)
}

func (c Config) newEgo(y float64) *vehicle.Ego {
	return vehicle.NewEgo(geom.V(0, y), 0, c.EgoSpeed, c.Profile.EgoLength, c.Profile.EgoWidth)
}

// SwerveConfig describes a swerve: the NPC crosses into the ego lane, holds, and
// returns to its own lane.
type SwerveConfig struct {
	Config
	Swerve maneuver.SwerveParams
}

// NewSwerve places the ego in the lane next to the NPC, on the side the NPC swerves
// towards. The lane width always follows the profile. The driver perceives a risk once
// the NPC crosses the shared lane line.
func NewSwerve(cfg SwerveConfig) (*Simulation, error) {
	cfg.Config = cfg.withDefaults(SwerveStep)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("swerve: %w", err)
	}
	p := cfg.Swerve
	p.LaneWidth = cfg.Profile.LaneWidth

	side := 1.0 // NPC heads -x, so its right is +y
	if p.SwerveLeft {
		side = -1
	}
	lane := cfg.Profile.LaneWidth

	m := maneuver.NewSwerve(p)
	ego := cfg.newEgo(side * lane)
	npc := cfg.placeNPC(m)
	risk := LaneBoundary{Y: side * lane / 2, Below: side < 0}
	return New(ego, npc, m, risk, cfg.AEB, cfg.Brake, cfg.DX0, cfg.Step), nil
}

// UTurnConfig describes a U-turn across the median into the ego's direction of travel.
type UTurnConfig struct {
	Config
	UTurn maneuver.UTurnParams
	Lane  config.Lane
}

// NewUTurn places the ego beyond the median strip, in the lane nearest to it or the
// one after, on the side the NPC turns towards. The driver perceives a risk once the
// NPC crosses the median.
func NewUTurn(cfg UTurnConfig) (*Simulation, error) {
	cfg.Config = cfg.withDefaults(UTurnStep)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("uturn: %w", err)
	}
	lane, err := config.ParseLane(string(cfg.Lane))
	if err != nil {
		return nil, fmt.Errorf("uturn: %w", err)
	}

	side := 1.0
	if cfg.UTurn.TurnLeft {
		side = -1
	}
	env := cfg.Profile
	egoY := env.MedianStrip + env.LaneWidth
	if lane == config.LaneAdjacent {
		egoY += env.LaneWidth
	}

	m := maneuver.NewUTurn(cfg.UTurn)
	ego := cfg.newEgo(side * egoY)
	npc := cfg.placeNPC(m)
	risk := LaneBoundary{Y: side * (env.LaneWidth/2 + env.MedianStrip), Below: side < 0}
	return New(ego, npc, m, risk, cfg.AEB, cfg.Brake, cfg.DX0, cfg.Step), nil
}

// Build resolves the profile, trigger distance and defaults of in and constructs the
// simulation it describes.
func (in Input) Build(profiles config.Profiles) (*Simulation, Meta, error) {
	profile := profiles.Lookup(in.Env)
	if in.Profile != nil {
		profile = *in.Profile
	}

	var aeb AEBPolicy = NeverAEB{}
	if in.AEBTTC > 0 {
		aeb = TTCBelow{Threshold: in.AEBTTC}
	}
	base := Config{
		Profile:    profile,
		DX0:        in.DX0,
		InitialGap: in.InitialGap,
		EgoSpeed:   in.EgoSpeed,
		NPCSpeed:   in.NPCSpeed,
		Brake:      in.Brake,
		AEB:        aeb,
		Step:       in.SimStep,
	}

	var (
		sim     *Simulation
		err     error
		horizon float64
	)
	switch in.Maneuver.Kind() {
	case maneuver.KindSwerve:
		if base.DX0 == 0 {
			base.DX0 = config.SwerveDX0(in.NPCSpeed*3.6, in.Maneuver.Swerve.LateralVelocity)
		}
		sim, err = NewSwerve(SwerveConfig{Config: base, Swerve: *in.Maneuver.Swerve})
		horizon = SwerveHorizon
	case maneuver.KindUTurn:
		if base.DX0 == 0 {
			lane, lerr := config.ParseLane(in.Lane)
			if lerr != nil {
				return nil, Meta{}, fmt.Errorf("uturn: %w", lerr)
			}
			base.DX0 = config.UTurnDX0(lane, in.NPCSpeed*3.6)
		}
		sim, err = NewUTurn(UTurnConfig{Config: base, UTurn: *in.Maneuver.UTurn, Lane: config.Lane(in.Lane)})
		horizon = UTurnHorizon
	default:
		return nil, Meta{}, fmt.Errorf("input: missing maneuver")
	}
	if err != nil {
		return nil, Meta{}, err
	}

	if in.MaxTime > 0 {
		horizon = in.MaxTime
	}
	sim.Record = in.Record
	meta := Meta{
		Maneuver: in.Maneuver.Kind(),
		Profile:  profile.Name,
		DX0:      sim.TriggerGap,
		SimStep:  sim.Step,
		MaxTime:  horizon,
	}
	return sim, meta, nil
}
