package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/analysis"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/braking"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/config"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/maneuver"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/scenario"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/server"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/sweep"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/viewer"
)

// scenarioFlags are shared by every scenario subcommand. Speeds are in km/h.
func scenarioFlags(env string, ve, vo float64) []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "env", Value: env, Usage: "Environment profile: " + strings.Join(config.Builtin().Names(), ", ")},
		cli.Float64Flag{Name: "dx0", Usage: "Trigger gap in m; looked up from the trigger tables if 0"},
		cli.Float64Flag{Name: "initial-gap", Usage: "Gap at t=0 in m, if larger than dx0"},
		cli.Float64Flag{Name: "ve", Value: ve, Usage: "Ego speed in km/h"},
		cli.Float64Flag{Name: "vo", Value: vo, Usage: "NPC speed in km/h"},
		cli.Float64Flag{Name: "aeb-ttc", Usage: "Activate AEB below this TTC in s; no AEB if 0"},
		cli.Float64Flag{Name: "max-time", Usage: "Simulated seconds; per-maneuver default if 0"},
		cli.BoolFlag{Name: "left", Usage: "Maneuver to the NPC's left"},
	}
}

func swerveFlags() []cli.Flag {
	return []cli.Flag{
		cli.Float64Flag{Name: "vy", Value: maneuver.DefaultSwerveParams().LateralVelocity, Usage: "Lateral velocity in m/s"},
	}
}

func uturnFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "lane", Value: string(config.LaneInnermost), Usage: "Ego lane: innermost or adjacent"},
	}
}

// sweepFlags defaults to the reference grid of kind. U-turn ego speeds are in km/h.
func sweepFlags(kind maneuver.Kind) []cli.Flag {
	g := sweep.DefaultGrid(kind)
	params := formatValues(g.Params, 1)
	if kind == maneuver.KindUTurn {
		params = formatValues(g.Params, 3.6)
	}
	return []cli.Flag{
		cli.StringFlag{Name: "dx0-range", Value: formatValues(g.DX0, 1), Usage: "Swept dx0 in m, as from:to:step or a comma-separated list"},
		cli.StringFlag{Name: "param-range", Value: params, Usage: "Swept parameter, as from:to:step or a comma-separated list"},
		cli.IntFlag{Name: "workers", Usage: "Concurrent simulations; number of CPUs if 0"},
		cli.StringFlag{Name: "csv", Usage: "Also write the outcomes to this CSV file"},
		cli.BoolFlag{Name: "no-color", Usage: "Disable colored output"},
		cli.BoolFlag{Name: "no-progress", Usage: "Hide the progress bar"},
	}
}

func viewFlags() []cli.Flag {
	return []cli.Flag{
		cli.DurationFlag{Name: "interval", Value: 50 * time.Millisecond, Usage: "Delay between frames"},
	}
}

func loadProfiles(c *cli.Context) (config.Profiles, error) {
	path := c.GlobalString("profiles")
	if path == "" {
		return config.Builtin(), nil
	}
	return config.LoadFile(path)
}

// scenarioInput assembles the input described by the flags of a scenario subcommand.
func scenarioInput(c *cli.Context, kind maneuver.Kind) scenario.Input {
	in := scenario.Input{
		Env:        c.String("env"),
		DX0:        c.Float64("dx0"),
		InitialGap: c.Float64("initial-gap"),
		EgoSpeed:   c.Float64("ve") / 3.6,
		NPCSpeed:   c.Float64("vo") / 3.6,
		Brake:      braking.DefaultParams(),
		AEBTTC:     c.Float64("aeb-ttc"),
		MaxTime:    c.Float64("max-time"),
	}
	switch kind {
	case maneuver.KindSwerve:
		p := maneuver.DefaultSwerveParams()
		p.LateralVelocity = c.Float64("vy")
		p.SwerveLeft = c.Bool("left")
		in.Maneuver = maneuver.Spec{Swerve: &p}
	case maneuver.KindUTurn:
		p := maneuver.DefaultUTurnParams()
		p.TurnLeft = c.Bool("left")
		in.Maneuver = maneuver.Spec{UTurn: &p}
		in.Lane = c.String("lane")
	}
	return in
}

func writeLog(w io.Writer, simLog scenario.Log) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(simLog)
}

func logResult(meta scenario.Meta, res scenario.Result) {
	log.WithFields(log.Fields{
		"maneuver":          meta.Maneuver,
		"profile":           meta.Profile,
		"dx0":               meta.DX0,
		"collision":         res.Collision,
		"brake_state":       res.BrakeState,
		"ego_travel":        res.EgoTravel,
		"stopping_distance": res.StoppingDistance,
		"stopping_time":     res.StoppingTime,
	}).Info("simulation finished")
}

func runAction(c *cli.Context) error {
	var (
		data []byte
		err  error
	)
	if path := c.Args().First(); path != "" && path != "-" {
		data, err = os.ReadFile(path)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	var in scenario.Input
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("invalid input JSON: %w", err)
	}
	ps, err := loadProfiles(c)
	if err != nil {
		return err
	}
	simLog, err := scenario.Execute(in, ps)
	if err != nil {
		return fmt.Errorf("simulation error: %w", err)
	}
	return writeLog(os.Stdout, simLog)
}

func simulateAction(kind maneuver.Kind) cli.ActionFunc {
	return func(c *cli.Context) error {
		ps, err := loadProfiles(c)
		if err != nil {
			return err
		}
		in := scenarioInput(c, kind)
		in.Record = true
		simLog, err := scenario.Execute(in, ps)
		if err != nil {
			return err
		}
		logResult(simLog.Meta, simLog.Result)
		return writeLog(os.Stdout, simLog)
	}
}

// parseValues parses from:to:step or a comma-separated list of values.
func parseValues(s string) ([]float64, error) {
	if !strings.Contains(s, ":") {
		var out []float64
		for _, p := range strings.Split(s, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("values %q: %w", s, err)
			}
			out = append(out, f)
		}
		return out, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("range %q: want from:to:step", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", s, err)
		}
		v[i] = f
	}
	out := sweep.Range(v[0], v[1], v[2])
	if len(out) == 0 {
		return nil, fmt.Errorf("range %q is empty", s)
	}
	return out, nil
}

// formatValues renders vs multiplied by scale in the form parseValues reads back:
// from:to:step when evenly spaced, a list otherwise.
func formatValues(vs []float64, scale float64) string {
	trim := func(v float64) float64 { return math.Round(v*1e6) / 1e6 }
	format := func(v float64) string { return strconv.FormatFloat(trim(v), 'f', -1, 64) }

	scaled := make([]string, len(vs))
	for i, v := range vs {
		scaled[i] = format(v * scale)
	}
	if len(vs) >= 3 {
		step := trim(vs[1]*scale - vs[0]*scale)
		even := step > 0
		for i := 2; i < len(vs) && even; i++ {
			even = math.Abs(vs[i]*scale-vs[i-1]*scale-step) < 1e-6
		}
		if even {
			return scaled[0] + ":" + scaled[len(vs)-1] + ":" + format(step)
		}
	}
	return strings.Join(scaled, ",")
}

func sweepAction(kind maneuver.Kind) cli.ActionFunc {
	return func(c *cli.Context) error {
		ps, err := loadProfiles(c)
		if err != nil {
			return err
		}
		var g sweep.Grid
		if g.DX0, err = parseValues(c.String("dx0-range")); err != nil {
			return err
		}
		if g.Params, err = parseValues(c.String("param-range")); err != nil {
			return err
		}
		if kind == maneuver.KindUTurn {
			for i := range g.Params {
				g.Params[i] /= 3.6
			}
		}

		opts := sweep.Options{Workers: c.Int("workers")}
		if !c.Bool("no-progress") {
			opts.Progress = os.Stderr
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		report, err := sweep.Run(ctx, scenarioInput(c, kind), ps, g, opts)
		if err != nil {
			return err
		}
		if path := c.String("csv"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating csv: %w", err)
			}
			defer f.Close()
			if err := report.WriteCSV(f); err != nil {
				return fmt.Errorf("writing csv: %w", err)
			}
		}
		if err := report.WriteGrid(os.Stdout, !c.Bool("no-color")); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout)
		return report.WriteSafeDX0(os.Stdout)
	}
}

func analyzeAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("analyze: missing trace file or directory")
	}
	unit := analysis.SpeedUnit(c.String("unit"))
	if unit != analysis.MetersPerSecond && unit != analysis.KmPerHour {
		return fmt.Errorf("analyze: unknown unit %q (want m or km)", unit)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	var records []analysis.Record
	if info.IsDir() {
		if records, err = analysis.AnalyzeDir(path); err != nil {
			return err
		}
	} else {
		rec, err := analysis.AnalyzeFile(path)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return analysis.WriteTable(os.Stdout, records, unit, !c.Bool("no-color"))
}

func serveAction(c *cli.Context) error {
	ps, err := loadProfiles(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return server.New(ps).ListenAndServe(ctx, c.String("addr"))
}

func viewAction(kind maneuver.Kind) cli.ActionFunc {
	return func(c *cli.Context) error {
		ps, err := loadProfiles(c)
		if err != nil {
			return err
		}
		in := scenarioInput(c, kind)
		in.Record = true
		simLog, err := scenario.Execute(in, ps)
		if err != nil {
			return err
		}

		lanes := viewer.LaneLines(ps.Lookup(in.Env), kind)
		if c.Bool("left") {
			for i := range lanes {
				lanes[i] = -lanes[i]
			}
		}

		screen, err := tcell.NewScreen()
		if err != nil {
			return err
		}
		if err := screen.Init(); err != nil {
			return err
		}
		defer screen.Fini()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err = viewer.New(screen, simLog.Output, lanes).Run(ctx, c.Duration("interval"))
		if err == context.Canceled {
			return nil
		}
		return err
	}
}
