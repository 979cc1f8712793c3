package sweep

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/config"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/maneuver"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/scenario"
)

func swerveBase() scenario.Input {
	p := maneuver.DefaultSwerveParams()
	return scenario.Input{
		Maneuver: maneuver.Spec{Swerve: &p},
		EgoSpeed: 40 / 3.6,
		NPCSpeed: 15 / 3.6,
	}
}

func uturnBase() scenario.Input {
	p := maneuver.DefaultUTurnParams()
	return scenario.Input{
		Maneuver: maneuver.Spec{UTurn: &p},
		NPCSpeed: 10 / 3.6,
	}
}

func TestRange(t *testing.T) {
	assert.Equal(t, []float64{10, 12, 14}, Range(10, 14, 2))
	assert.Len(t, Range(0.8, 2.0, 0.2), 7)
	assert.Equal(t, []float64{5}, Range(5, 5, 1))
	assert.Nil(t, Range(5, 4, 1))
	assert.Nil(t, Range(1, 4, 0))

}

func TestReferenceGrids(t *testing.T) {
	sw := DefaultGrid(maneuver.KindSwerve)
	assert.Equal(t, SwerveGrid(), sw)
	require.Len(t, sw.DX0, 41)
	assert.Equal(t, 15.0, sw.DX0[0])
	assert.Equal(t, 55.0, sw.DX0[40])
	require.Len(t, sw.Params, 11)
	assert.InDelta(t, 0.6, sw.Params[0], 1e-9)
	assert.InDelta(t, 1.6, sw.Params[10], 1e-9)
	assert.Equal(t, config.SwerveBenchProfile, DefaultEnv(maneuver.KindSwerve))

	ut := DefaultGrid(maneuver.KindUTurn)
	assert.Equal(t, UTurnGrid(), ut)
	require.Len(t, ut.DX0, 42)
	assert.Equal(t, 9.0, ut.DX0[0])
	assert.Equal(t, 50.0, ut.DX0[41])
	require.Len(t, ut.Params, 8)
	assert.InDelta(t, 14/3.6, ut.Params[0], 1e-9)
	assert.InDelta(t, 20/3.6, ut.Params[1], 1e-9)
	assert.InDelta(t, 50/3.6, ut.Params[7], 1e-9)
	assert.Equal(t, config.DefaultProfile, DefaultEnv(maneuver.KindUTurn))
}

func TestRunSwerve(t *testing.T) {
	g := Grid{DX0: []float64{15, 50}, Params: []float64{1.2}}
	report, err := Run(context.Background(), swerveBase(), config.Builtin(), g, Options{Workers: 2})
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, maneuver.KindSwerve, report.Maneuver)
	require.Len(t, report.Outcomes, 2)

	short, long := report.Outcomes[0], report.Outcomes[1]
	assert.Equal(t, 15.0, short.DX0)
	assert.Equal(t, 1.2, short.Param)
	assert.True(t, short.Collision)
	assert.Greater(t, short.CollisionTime, 0.0)

	assert.Equal(t, 50.0, long.DX0)
	assert.False(t, long.Collision)
	assert.Greater(t, long.EgoTravel, 0.0)

	assert.Equal(t, []Outcome{short}, report.Collisions())
	assert.Equal(t, map[float64]float64{1.2: 50}, report.SafeDX0())
}

func TestRunUTurnVariesEgoSpeed(t *testing.T) {
	g := Grid{DX0: []float64{12}, Params: []float64{10 / 3.6, 40 / 3.6}}
	report, err := Run(context.Background(), uturnBase(), config.Builtin(), g, Options{Workers: 1, Progress: io.Discard})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)

	assert.False(t, report.Outcomes[0].Collision, "slow ego stops in time")
	assert.True(t, report.Outcomes[1].Collision, "fast ego cannot stop")
	assert.Equal(t, map[float64]float64{10 / 3.6: 12}, report.SafeDX0())
}

func TestRunMatchesSequential(t *testing.T) {
	g := Grid{DX0: []float64{10, 20, 30}, Params: []float64{1.0, 1.4}}
	base := swerveBase()

	report, err := Run(context.Background(), base, config.Builtin(), g, Options{Workers: 4})
	require.NoError(t, err)

	i := 0
	for _, vy := range g.Params {
		for _, dx0 := range g.DX0 {
			sim, meta, err := input(base, dx0, vy).Build(config.Builtin())
			require.NoError(t, err)
			res := sim.Run(meta.MaxTime)

			o := report.Outcomes[i]
			assert.Equal(t, dx0, o.DX0)
			assert.Equal(t, vy, o.Param)
			assert.Equal(t, res.Collision, o.Collision)
			assert.Equal(t, res.EgoTravel, o.EgoTravel)
			i++
		}
	}
}

func TestInputDoesNotAlias(t *testing.T) {
	base := swerveBase()
	in := input(base, 20, 1.8)

	assert.Equal(t, 1.8, in.Maneuver.Swerve.LateralVelocity)
	assert.Equal(t, 1.2, base.Maneuver.Swerve.LateralVelocity)
	assert.Equal(t, 20.0, in.DX0)
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Run(ctx, scenario.Input{}, config.Builtin(), SwerveGrid(), Options{})
	assert.ErrorContains(t, err, "missing maneuver")

	_, err = Run(ctx, swerveBase(), config.Builtin(), Grid{DX0: []float64{10}}, Options{})
	assert.ErrorContains(t, err, "empty grid")

	_, err = Run(ctx, swerveBase(), config.Builtin(), Grid{DX0: []float64{0}, Params: []float64{1}}, Options{})
	assert.ErrorContains(t, err, "positive")

	bad := swerveBase()
	bad.EgoSpeed = -1
	_, err = Run(ctx, bad, config.Builtin(), Grid{DX0: []float64{10}, Params: []float64{1}}, Options{})
	assert.ErrorContains(t, err, "dx0=10")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, swerveBase(), config.Builtin(), SwerveGrid(), Options{Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func sampleReport() *Report {
	return &Report{
		Maneuver: maneuver.KindSwerve,
		Grid:     Grid{DX0: []float64{10, 20}, Params: []float64{1, 1.5}},
		Outcomes: []Outcome{
			{DX0: 10, Param: 1, Collision: true, CollisionTime: 1.25, EgoTravel: 12.5},
			{DX0: 20, Param: 1, EgoTravel: 18},
			{DX0: 10, Param: 1.5, Collision: true, CollisionTime: 0.9, EgoTravel: 9.1234},
			{DX0: 20, Param: 1.5, Collision: true, CollisionTime: 2, EgoTravel: 21},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().WriteCSV(&buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"dx0", "param", "collision", "collision_time", "ego_travel"}, rows[0])
	assert.Equal(t, []string{"10", "1", "true", "1.25", "12.500"}, rows[1])
	assert.Equal(t, []string{"20", "1", "false", "", "18.000"}, rows[2])
	assert.Equal(t, []string{"10", "1.5", "true", "0.9", "9.123"}, rows[3])
}

func TestWriteGrid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().WriteGrid(&buf, false))

	want := strings.Join([]string{
		"           10   20",
		"    1.00    X    .",
		"    1.50    X    X",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())

	buf.Reset()
	require.NoError(t, sampleReport().WriteGrid(&buf, true))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestSafeDX0(t *testing.T) {
	assert.Equal(t, map[float64]float64{1: 20}, sampleReport().SafeDX0())
}

func TestWriteSafeDX0(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().WriteSafeDX0(&buf))

	want := strings.Join([]string{
		"   param safe dx0",
		"    1.00       20",
		"    1.50        -",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}
