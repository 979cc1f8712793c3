// Command safety-bench simulates ego/NPC swerve and U-turn scenarios, sweeps their
// parameters, analyzes recorded traces and serves or replays simulation runs.
//
// The run command keeps the plain JSON contract shared with the WASM build: it reads
// a scenario input from a file argument (or stdin) and writes the log to stdout.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/ttacon/chalk"
	"github.com/urfave/cli"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/config"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/maneuver"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/sweep"
)

func main() {
	if err := makeapp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, chalk.Red.Color("error: "+err.Error()))
		os.Exit(1)
	}
}

func makeapp() *cli.App {
	app := cli.NewApp()
	app.Name = "safety-bench"
	app.Usage = "ego/NPC safety scenario simulator and trace analyzer"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		cli.StringFlag{Name: "profiles", Value: "", Usage: "JSON file of environment profiles merged over the built-in ones"},
	}
	app.Before = func(c *cli.Context) error {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		log.SetOutput(os.Stderr)
		if c.Bool("debug") {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	}

	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "Run a scenario input JSON and print the log JSON",
			ArgsUsage: "[input.json]",
			Action:    runAction,
		},
		{
			Name:  "simulate",
			Usage: "Run one scenario and print its log JSON",
			Subcommands: []cli.Command{
				{
					Name:   "swerve",
					Usage:  "NPC swerves into the ego lane and back",
					Flags:  append(scenarioFlags(config.DefaultProfile, 40, 15), swerveFlags()...),
					Action: simulateAction(maneuver.KindSwerve),
				},
				{
					Name:   "uturn",
					Usage:  "NPC U-turns across the median into the ego's path",
					Flags:  append(scenarioFlags(config.DefaultProfile, 40, 10), uturnFlags()...),
					Action: simulateAction(maneuver.KindUTurn),
				},
			},
		},
		{
			Name:  "sweep",
			Usage: "Simulate a grid of trigger distances and maneuver parameters",
			Subcommands: []cli.Command{
				{
					Name:   "swerve",
					Usage:  "Sweep dx0 x vy (m/s)",
					Flags:  append(append(scenarioFlags(sweep.DefaultEnv(maneuver.KindSwerve), 40, 15), swerveFlags()...), sweepFlags(maneuver.KindSwerve)...),
					Action: sweepAction(maneuver.KindSwerve),
				},
				{
					Name:   "uturn",
					Usage:  "Sweep dx0 x ve (km/h)",
					Flags:  append(append(scenarioFlags(sweep.DefaultEnv(maneuver.KindUTurn), 40, 10), uturnFlags()...), sweepFlags(maneuver.KindUTurn)...),
					Action: sweepAction(maneuver.KindUTurn),
				},
			},
		},
		{
			Name:      "analyze",
			Usage:     "Analyze a recorded trace file or a directory of traces",
			ArgsUsage: "<file|dir>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "unit", Value: "m", Usage: "Speed unit of the table: m (m/s) or km (km/h)"},
				cli.BoolFlag{Name: "no-color", Usage: "Disable colored output"},
			},
			Action: analyzeAction,
		},
		{
			Name:  "serve",
			Usage: "Serve simulations and trace analysis over HTTP",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "addr", Value: ":8080", Usage: "Listen address"},
			},
			Action: serveAction,
		},
		{
			Name:  "view",
			Usage: "Replay a scenario in the terminal",
			Subcommands: []cli.Command{
				{
					Name:   "swerve",
					Flags:  append(append(scenarioFlags(config.DefaultProfile, 40, 15), swerveFlags()...), viewFlags()...),
					Action: viewAction(maneuver.KindSwerve),
				},
				{
					Name:   "uturn",
					Flags:  append(append(scenarioFlags(config.DefaultProfile, 40, 10), uturnFlags()...), viewFlags()...),
					Action: viewAction(maneuver.KindUTurn),
				},
			},
		},
	}
	return app
}
