package analysis

import (
	"fmt"
	"io"
	"math"

	"github.com/ttacon/chalk"
)

// SpeedUnit selects how speeds are printed.
type SpeedUnit string

const (
	MetersPerSecond SpeedUnit = "m"
	KmPerHour       SpeedUnit = "km"
)

func (u SpeedUnit) convert(v float64) float64 {
	if u == KmPerHour {
		return v * 3.6
	}
	return v
}

// WriteTable prints one comma-separated row per record under a header line. Collision
// cells are colored when color is set.
func WriteTable(w io.Writer, records []Record, unit SpeedUnit, color bool) error {
	if _, err := fmt.Fprintln(w, "File name, NPC speed, Ego speed, dx0, Is collision, Min TTC, Speed at Collide"); err != nil {
		return err
	}
	for _, r := range records {
		col := "N"
		if r.Collision {
			col = fmt.Sprintf("Y (%g)", r.CollisionTime)
		}
		if color {
			if r.Collision {
				col = chalk.Red.Color(col)
			} else {
				col = chalk.Green.Color(col)
			}
		}
		ttc := "inf"
		if !math.IsInf(r.MinTTC, 1) {
			ttc = fmt.Sprintf("%.2f", r.MinTTC)
		}
		_, err := fmt.Fprintf(w, "%s, %.1f, %.1f, %g, %s, %s, %g\n",
			r.File, unit.convert(r.NPCSpeed), unit.convert(r.EgoSpeed), r.DX0, col, ttc,
			unit.convert(r.SpeedAtCollision))
		if err != nil {
			return err
		}
	}
	return nil
}
