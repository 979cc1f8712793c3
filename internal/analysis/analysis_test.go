package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/trace"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/vehicle"
)

const tickDt = 0.05

// headOn records an ego driving +x at ve towards an NPC driving -x at vo, starting
// gap metres apart bumper to bumper, with egoY lateral offset. The trigger waypoint
// sits just ahead of the NPC front at tick startTick.
func headOn(name, key string, ve, vo, gap, egoY float64, ticks, startTick int) *trace.Trace {
	const length, egoWidth, npcWidth = 4.0, 2.0, 1.8
	npcX0 := gap + length

	tr := &trace.Trace{
		Name: name,
		Sizes: trace.Sizes{
			trace.EgoName: {Name: trace.EgoName, Size: trace.Vector3{X: length, Y: egoWidth, Z: 1.5}},
			trace.NPCName: {Name: trace.NPCName, Size: trace.Vector3{X: length, Y: npcWidth, Z: 1.5}},
		},
	}
	for i := 0; i < ticks; i++ {
		ts := float64(i) * tickDt
		tr.Ticks = append(tr.Ticks, trace.Tick{
			Timestamp: ts,
			Ego: &trace.Kinematic{
				Pose:  trace.Pose{Position: trace.Vector3{X: ve * ts, Y: egoY}},
				Twist: trace.Twist{Linear: trace.Vector3{X: ve}},
			},
			Vehicles: []trace.Kinematic{{
				Pose:  trace.Pose{Position: trace.Vector3{X: npcX0 - vo*ts}, Rotation: trace.Vector3{Z: 180}},
				Twist: trace.Twist{Linear: trace.Vector3{X: -vo}},
			}},
		})
	}

	wpX := npcX0 - length/2 - vo*float64(startTick)*tickDt - 0.01
	tr.Metadata = map[string]json.RawMessage{
		key: json.RawMessage(fmt.Sprintf(`{"x": %g, "y": 0, "z": 0}`, wpX)),
	}
	return tr
}

func TestManeuverStart(t *testing.T) {
	tr := headOn("swerve_sim1.json", SwerveKey, 10, 5, 20, 0, 40, 4)

	start, err := ManeuverStart(tr, SwerveKey)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, start, 1e-12)

	_, err = ManeuverStart(tr, UTurnKey)
	assert.True(t, errors.Is(err, trace.ErrNotFound))
}

func TestManeuverStartAlreadyPassed(t *testing.T) {
	tr := headOn("swerve_sim1.json", SwerveKey, 10, 5, 20, 0, 10, 4)
	tr.Metadata[SwerveKey] = json.RawMessage(`{"x": 100, "y": 0, "z": 0}`)

	start, err := ManeuverStart(tr, SwerveKey)
	require.NoError(t, err)
	assert.Equal(t, 0.0, start)
}

func TestFirstCollision(t *testing.T) {
	tr := headOn("swerve_sim1.json", SwerveKey, 10, 5, 20, 0, 40, 4)

	ts, ok, err := FirstCollision(tr, 0.2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 1.35, ts, 1e-9)

	_, ok, err = FirstCollision(tr, 1.5)
	require.NoError(t, err)
	assert.True(t, ok, "still overlapping after the first contact")

	apart := headOn("swerve_sim2.json", SwerveKey, 10, 5, 20, 3.5, 40, 4)
	_, ok, err = FirstCollision(apart, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMinTTC(t *testing.T) {
	short := headOn("swerve_sim1.json", SwerveKey, 10, 5, 20, 0, 10, 4)
	ttc, err := MinTTC(short, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.89, ttc, 1e-9)

	apart := headOn("swerve_sim2.json", SwerveKey, 10, 5, 20, 3.5, 40, 4)
	ttc, err = MinTTC(apart, 0)
	require.NoError(t, err)
	assert.True(t, math.IsInf(ttc, 1))
}

func TestMinTTCWindow(t *testing.T) {
	tr := headOn("swerve_sim1.json", SwerveKey, 10, 5, 20, 0, 10, 4)

	ttc, err := MinTTC(tr, -20)
	require.NoError(t, err)
	assert.True(t, math.IsInf(ttc, 1), "ticks after the window are ignored")
}

func TestRolloutTTCMonotonicInClosingSpeed(t *testing.T) {
	prev := math.Inf(1)
	for closing := 2.0; closing <= 30; closing += 0.5 {
		ego := vehicle.New(geom.V(0, 0), 0, 4.9, 2.2)
		ego.Velocity = geom.V(closing, 0)
		npc := vehicle.New(geom.V(4.45+12, 0.3), math.Pi, 4.0, 1.9)

		ttc := RolloutTTC(ego, npc, TTCHorizon, TTCStep)
		assert.LessOrEqual(t, ttc, prev, "closing %.1f", closing)
		prev = ttc
	}
	assert.False(t, math.IsInf(prev, 1))
}

func TestRolloutTTCImmediate(t *testing.T) {
	ego := vehicle.New(geom.V(0, 0), 0, 4, 2)
	npc := vehicle.New(geom.V(3, 0.5), math.Pi, 4, 2)
	assert.Zero(t, RolloutTTC(ego, npc, TTCHorizon, TTCStep))
}

func TestLongitudinalGap(t *testing.T) {
	tr := headOn("swerve_sim1.json", SwerveKey, 10, 5, 20, 0, 10, 4)

	gap, err := LongitudinalGap(tr, 0)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, gap, 1e-9)

	_, err = LongitudinalGap(tr, 0.123)
	assert.True(t, errors.Is(err, trace.ErrNotFound))
}

func TestAnalyzeCollision(t *testing.T) {
	tr := headOn("swerve_sim1.json", SwerveKey, 10, 5, 20, 0, 40, 4)

	rec, err := Analyze(tr)
	require.NoError(t, err)
	assert.Equal(t, "swerve_sim1.json", rec.File)
	assert.Equal(t, SwerveKey, rec.Maneuver)
	assert.Equal(t, 17.0, rec.DX0)
	assert.Equal(t, 10.0, rec.EgoSpeed)
	assert.Equal(t, 5.0, rec.NPCSpeed)
	assert.True(t, rec.Collision)
	assert.InDelta(t, 1.35, rec.CollisionTime, 1e-9)
	assert.Zero(t, rec.MinTTC)
	assert.Equal(t, 10.0, rec.SpeedAtCollision)
	assert.InDelta(t, 0.25*1.8, rec.OverlapArea, 1e-6)
}

func TestAnalyzeNoRisk(t *testing.T) {
	tr := headOn("uturn_sim7.json", UTurnKey, 10, 5, 20, 3.5, 40, 4)

	rec, err := Analyze(tr)
	require.NoError(t, err)
	assert.Equal(t, UTurnKey, rec.Maneuver)
	assert.False(t, rec.Collision)
	assert.True(t, math.IsInf(rec.MinTTC, 1))

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"min_ttc":null`)
}

func TestAnalyzeMissingSizes(t *testing.T) {
	tr := headOn("swerve_sim1.json", SwerveKey, 10, 5, 20, 0, 40, 4)
	delete(tr.Sizes, trace.NPCName)

	_, err := Analyze(tr)
	assert.True(t, errors.Is(err, trace.ErrNotFound))
}

func writeTrace(t *testing.T, dir string, tr *trace.Trace) {
	t.Helper()
	data, err := json.Marshal(tr)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, tr.Name), data, 0o644))
}

func TestAnalyzeDir(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, headOn("uturn_sim2.json", UTurnKey, 10, 5, 20, 0, 10, 4))
	writeTrace(t, dir, headOn("swerve_sim10.json", SwerveKey, 10, 5, 20, 0, 40, 4))
	writeTrace(t, dir, headOn("swerve_simA.json", SwerveKey, 10, 5, 20, 0, 40, 4))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "swerve_sim3.json"), 0o755))

	records, err := AnalyzeDir(dir)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "swerve_sim10.json", records[0].File)
	assert.True(t, records[0].Collision)
	assert.Equal(t, "uturn_sim2.json", records[1].File)
	assert.InDelta(t, 0.89, records[1].MinTTC, 1e-9)
}

func TestAnalyzeDirStopsOnMalformed(t *testing.T) {
	dir := t.TempDir()
	bad := headOn("swerve_sim1.json", SwerveKey, 10, 5, 20, 0, 10, 4)
	bad.Ticks[3].Timestamp = bad.Ticks[2].Timestamp
	writeTrace(t, dir, bad)

	_, err := AnalyzeDir(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, trace.ErrMalformed))
	assert.Contains(t, err.Error(), "swerve_sim1.json")
}

func TestWriteTable(t *testing.T) {
	records := []Record{
		{File: "swerve_sim1.json", DX0: 17, EgoSpeed: 10, NPCSpeed: 5, Collision: true, CollisionTime: 1.35, SpeedAtCollision: 10},
		{File: "uturn_sim2.json", DX0: 12.5, EgoSpeed: 5, NPCSpeed: 2.5, MinTTC: math.Inf(1)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, records, KmPerHour, false))
	assert.Equal(t,
		"File name, NPC speed, Ego speed, dx0, Is collision, Min TTC, Speed at Collide\n"+
			"swerve_sim1.json, 18.0, 36.0, 17, Y (1.35), 0.00, 36\n"+
			"uturn_sim2.json, 9.0, 18.0, 12.5, N, inf, 0\n",
		buf.String())
}
