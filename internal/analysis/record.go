package analysis

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/trace"
)

// filePattern matches the trace files AnalyzeDir picks up.
var filePattern = regexp.MustCompile(`^(swerve|uturn)_sim\d+\.json$`)

// Record is the analysis outcome of one trace. Speeds are in m/s.
type Record struct {
	File             string  `json:"file"`
	Maneuver         string  `json:"maneuver"` // metadata key the start was located with
	Start            float64 `json:"start"`    // s, maneuver start timestamp
	DX0              float64 `json:"dx0"`      // m, gap at the start, rounded to 3 decimals
	EgoSpeed         float64 `json:"ego_speed"`
	NPCSpeed         float64 `json:"npc_speed"`
	Collision        bool    `json:"collision"`
	CollisionTime    float64 `json:"collision_time"`     // s, valid if Collision
	MinTTC           float64 `json:"min_ttc"`            // s, 0 if collided, +Inf if never at risk
	SpeedAtCollision float64 `json:"speed_at_collision"` // ego speed at the collision tick
	OverlapArea      float64 `json:"overlap_area"`       // m², footprint intersection at the collision tick
}

// MarshalJSON encodes an infinite MinTTC as null.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	out := struct {
		plain
		MinTTC *float64 `json:"min_ttc"`
	}{plain: plain(r)}
	if !math.IsInf(r.MinTTC, 1) {
		out.MinTTC = &r.MinTTC
	}
	return json.Marshal(out)
}

// Analyze evaluates a decoded trace.
func Analyze(tr *trace.Trace) (Record, error) {
	key, err := maneuverKey(tr)
	if err != nil {
		return Record{}, err
	}
	start, err := ManeuverStart(tr, key)
	if err != nil {
		return Record{}, err
	}
	boxes, err := tr.Boxes()
	if err != nil {
		return Record{}, err
	}

	rec := Record{File: tr.Name, Maneuver: key, Start: start}

	rec.CollisionTime, rec.Collision, err = FirstCollision(tr, start)
	if err != nil {
		return Record{}, err
	}
	if rec.Collision {
		tick, err := tr.At(rec.CollisionTime)
		if err != nil {
			return Record{}, err
		}
		rec.SpeedAtCollision = tick.Ego.Speed()
		if rec.OverlapArea, err = overlapAt(tr, boxes, rec.CollisionTime); err != nil {
			return Record{}, err
		}
	} else if rec.MinTTC, err = MinTTC(tr, start); err != nil {
		return Record{}, err
	}

	gap, err := LongitudinalGap(tr, start)
	if err != nil {
		return Record{}, err
	}
	rec.DX0 = round3(gap)

	tick, err := tr.At(start)
	if err != nil {
		return Record{}, err
	}
	rec.EgoSpeed = round3(tick.Ego.Speed())
	rec.NPCSpeed = round3(tick.NPC().Speed())
	return rec, nil
}

// AnalyzeFile loads and evaluates the trace at path.
func AnalyzeFile(path string) (Record, error) {
	tr, err := trace.Load(path)
	if err != nil {
		return Record{}, err
	}
	return Analyze(tr)
}

// AnalyzeDir evaluates every swerve_simN.json / uturn_simN.json file directly inside
// dir, in file-name order. The first malformed trace aborts the batch.
func AnalyzeDir(dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "listing traces")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var records []Record
	for _, e := range entries {
		if e.IsDir() || !filePattern.MatchString(e.Name()) {
			continue
		}
		log.WithField("file", e.Name()).Info("analyzing trace")
		rec, err := AnalyzeFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
