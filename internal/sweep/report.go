package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/ttacon/chalk"
)

// Collisions returns the outcomes that ended in a collision.
func (r *Report) Collisions() []Outcome {
	return lo.Filter(r.Outcomes, func(o Outcome, _ int) bool { return o.Collision })
}

// SafeDX0 returns, per param, the smallest swept dx0 from which every larger swept dx0
// is collision free, assuming ascending grid dx0. Params where the largest dx0 still
// collides are absent.
func (r *Report) SafeDX0() map[float64]float64 {
	byParam := lo.GroupBy(r.Outcomes, func(o Outcome) float64 { return o.Param })
	safe := make(map[float64]float64, len(byParam))
	for param, outcomes := range byParam {
		// Outcomes of one param keep the grid's dx0 order.
		for i := len(outcomes) - 1; i >= 0 && !outcomes[i].Collision; i-- {
			safe[param] = outcomes[i].DX0
		}
	}
	return safe
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes one row per outcome. The collision time is empty for safe runs.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"dx0", "param", "collision", "collision_time", "ego_travel"}); err != nil {
		return err
	}
	for _, o := range r.Outcomes {
		ct := ""
		if o.Collision {
			ct = formatFloat(o.CollisionTime)
		}
		row := []string{
			formatFloat(o.DX0),
			formatFloat(o.Param),
			strconv.FormatBool(o.Collision),
			ct,
			strconv.FormatFloat(o.EgoTravel, 'f', 3, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteGrid prints the sweep as a param x dx0 matrix, X for a collision and . for a
// safe run, optionally colored.
func (r *Report) WriteGrid(w io.Writer, color bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%8s", "")
	for _, dx0 := range r.Grid.DX0 {
		fmt.Fprintf(&b, "%5g", dx0)
	}
	b.WriteByte('\n')

	n := len(r.Grid.DX0)
	for row, param := range r.Grid.Params {
		fmt.Fprintf(&b, "%8.2f", param)
		for _, o := range r.Outcomes[row*n : (row+1)*n] {
			cell := "."
			if o.Collision {
				cell = "X"
			}
			cell = fmt.Sprintf("%5s", cell)
			if color {
				if o.Collision {
					cell = chalk.Red.Color(cell)
				} else {
					cell = chalk.Green.Color(cell)
				}
			}
			b.WriteString(cell)
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSafeDX0 prints SafeDX0 one param per line in grid order, with - where even the
// largest swept dx0 collides.
func (r *Report) WriteSafeDX0(w io.Writer) error {
	safe := r.SafeDX0()
	var b strings.Builder
	fmt.Fprintf(&b, "%8s %8s\n", "param", "safe dx0")
	for _, param := range r.Grid.Params {
		cell := "-"
		if dx0, ok := safe[param]; ok {
			cell = formatFloat(dx0)
		}
		fmt.Fprintf(&b, "%8.2f %8s\n", param, cell)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
