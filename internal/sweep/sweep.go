// Package sweep runs grids of independent scenario simulations in parallel.
//
// Every grid point is its own simulation with its own state; workers share nothing but
// the read-only base input and write their outcome into a pre-sized slot.
package sweep

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime"

	"github.com/cheggaaa/pb"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/config"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/maneuver"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/scenario"
)

// Grid is the cartesian product of trigger distances and one varied parameter: the
// lateral velocity vy (m/s) of a swerve, or the ego speed ve (m/s) of a U-turn.
type Grid struct {
	DX0    []float64 `json:"dx0"`
	Params []float64 `json:"params"`
}

// Range returns from, from+step, ... up to and including to (within half a step).
func Range(from, to, step float64) []float64 {
	if step <= 0 || to < from {
		return nil
	}
	n := int(math.Floor((to-from)/step+0.5)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

// SwerveGrid is the reference swerve sweep: dx0 15..55 m by 1 m, vy 0.6..1.6 m/s by
// 0.1 m/s. It is defined against the SwerveBenchProfile geometry.
func SwerveGrid() Grid {
	return Grid{DX0: Range(15, 55, 1), Params: Range(0.6, 1.6, 0.1)}
}

// UTurnGrid is the reference U-turn sweep: dx0 9..50 m by 1 m, ve 14, 20, 25 .. 50 km/h.
func UTurnGrid() Grid {
	return Grid{DX0: Range(9, 50, 1), Params: kmh(14, 20, 25, 30, 35, 40, 45, 50)}
}

// DefaultGrid returns the reference sweep of kind.
func DefaultGrid(kind maneuver.Kind) Grid {
	if kind == maneuver.KindUTurn {
		return UTurnGrid()
	}
	return SwerveGrid()
}

// DefaultEnv names the environment profile the reference sweep of kind assumes.
func DefaultEnv(kind maneuver.Kind) string {
	if kind == maneuver.KindSwerve {
		return config.SwerveBenchProfile
	}
	return config.DefaultProfile
}

// kmh converts speeds from km/h to m/s.
func kmh(vs ...float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v / 3.6
	}
	return out
}

func (g Grid) validate() error {
	if len(g.DX0) == 0 || len(g.Params) == 0 {
		return fmt.Errorf("sweep: empty grid (%d dx0 x %d params)", len(g.DX0), len(g.Params))
	}
	for _, dx0 := range g.DX0 {
		if dx0 <= 0 {
			return fmt.Errorf("sweep: dx0 must be positive, got %g", dx0)
		}
	}
	return nil
}

// Outcome is the result of one grid point.
type Outcome struct {
	DX0           float64 `json:"dx0"`
	Param         float64 `json:"param"`
	Collision     bool    `json:"collision"`
	CollisionTime float64 `json:"collision_time"`
	EgoTravel     float64 `json:"ego_travel"`
}

// Options tune how a sweep executes.
type Options struct {
	Workers  int       // concurrent simulations; runtime.NumCPU() if zero
	Progress io.Writer // progress bar destination; no bar if nil
}

// Report is a finished sweep. Outcomes are ordered by param, then dx0, in grid order.
type Report struct {
	ID       string        `json:"id"`
	Maneuver maneuver.Kind `json:"maneuver"`
	Grid     Grid          `json:"grid"`
	Outcomes []Outcome     `json:"outcomes"`
}

// input derives the simulation for one grid point from base.
func input(base scenario.Input, dx0, param float64) scenario.Input {
	in := base
	in.DX0 = dx0
	in.Record = false
	switch {
	case base.Maneuver.Swerve != nil:
		p := *base.Maneuver.Swerve
		p.LateralVelocity = param
		in.Maneuver = maneuver.Spec{Swerve: &p}
	case base.Maneuver.UTurn != nil:
		in.EgoSpeed = param
	}
	return in
}

// Run simulates every point of g, varying base, on a bounded worker pool. The first
// failing simulation or a cancelled ctx stops the sweep.
func Run(ctx context.Context, base scenario.Input, profiles config.Profiles, g Grid, opts Options) (*Report, error) {
	kind := base.Maneuver.Kind()
	if kind == "" {
		return nil, fmt.Errorf("sweep: missing maneuver")
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	report := &Report{
		ID:       uuid.NewV4().String(),
		Maneuver: kind,
		Grid:     g,
		Outcomes: make([]Outcome, len(g.DX0)*len(g.Params)),
	}
	logger := log.WithFields(log.Fields{
		"sweep":    report.ID,
		"maneuver": kind,
		"runs":     len(report.Outcomes),
		"workers":  workers,
	})
	logger.Info("sweep: starting")

	var bar *pb.ProgressBar
	if opts.Progress != nil {
		bar = pb.New(len(report.Outcomes))
		bar.Output = opts.Progress
		bar.SetWidth(80)
		bar.Start()
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range report.Outcomes {
		dx0 := g.DX0[i%len(g.DX0)]
		param := g.Params[i/len(g.DX0)]
		slot := &report.Outcomes[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sim, meta, err := input(base, dx0, param).Build(profiles)
			if err != nil {
				return fmt.Errorf("sweep: dx0=%g param=%g: %w", dx0, param, err)
			}
			res, err := sim.RunContext(ctx, meta.MaxTime)
			if err != nil {
				return err
			}
			*slot = Outcome{
				DX0:           dx0,
				Param:         param,
				Collision:     res.Collision,
				CollisionTime: res.CollisionTime,
				EgoTravel:     res.EgoTravel,
			}
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}
	err := eg.Wait()
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		logger.WithError(err).Warn("sweep: aborted")
		return nil, err
	}

	logger.WithField("collisions", len(report.Collisions())).Info("sweep: done")
	return report, nil
}
