// Package viewer replays simulation frames on a terminal: lane lines and both vehicle
// footprints, scaled to fit the screen.
package viewer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/config"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/maneuver"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/scenario"
)

// Cell glyphs.
const (
	glyphEgo     = 'E'
	glyphNPC     = 'N'
	glyphOverlap = '#'
	glyphLane    = '-'
)

var styles = map[rune]tcell.Style{
	glyphEgo:     tcell.StyleDefault.Foreground(tcell.ColorBlue),
	glyphNPC:     tcell.StyleDefault.Foreground(tcell.ColorYellow),
	glyphOverlap: tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	glyphLane:    tcell.StyleDefault.Foreground(tcell.ColorGray),
}

// LaneLines returns the y of every lane marking of a scenario laid out in p, for the
// default maneuver side. Negate them for a mirrored run.
func LaneLines(p config.Profile, kind maneuver.Kind) []float64 {
	half := p.LaneWidth / 2
	if kind == maneuver.KindUTurn {
		far := half + p.MedianStrip
		return []float64{-half, half, far, far + p.LaneWidth, far + 2*p.LaneWidth}
	}
	return []float64{-half, half, half + p.LaneWidth}
}

// bounds is the world-space window shown on screen.
type bounds struct {
	minX, maxX, minY, maxY float64
}

func (b *bounds) include(p geom.Vec2) {
	b.minX = math.Min(b.minX, p.X)
	b.maxX = math.Max(b.maxX, p.X)
	b.minY = math.Min(b.minY, p.Y)
	b.maxY = math.Max(b.maxY, p.Y)
}

// Viewer steps through a recorded run. Space pauses, the arrow keys (or h and l) step
// one frame, q or Esc quits.
type Viewer struct {
	screen tcell.Screen
	frames []scenario.Frame
	lanes  []float64
	world  bounds
	idx    int
	paused bool
}

// New returns a viewer of frames on screen. The view fits every footprint of the run.
func New(screen tcell.Screen, frames []scenario.Frame, lanes []float64) *Viewer {
	world := bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, f := range frames {
		for _, r := range []geom.Rect{f.Ego.Vertices, f.NPC.Vertices} {
			for _, p := range r {
				world.include(p)
			}
		}
	}
	for _, y := range lanes {
		world.minY = math.Min(world.minY, y)
		world.maxY = math.Max(world.maxY, y)
	}
	const pad = 1.0 // m
	world.minX, world.maxX = world.minX-pad, world.maxX+pad
	world.minY, world.maxY = world.minY-pad, world.maxY+pad

	return &Viewer{screen: screen, frames: frames, lanes: lanes, world: world}
}

// Index is the frame currently shown.
func (v *Viewer) Index() int { return v.idx }

func (v *Viewer) step(delta int) {
	v.idx += delta
	if v.idx < 0 {
		v.idx = 0
	}
	if v.idx >= len(v.frames) {
		v.idx = len(v.frames) - 1
	}
}

// canvas renders the current frame into a w x h grid of glyphs; the last row holds the
// status line. Screen rows grow downwards while world y grows upwards.
func (v *Viewer) canvas(w, h int) [][]rune {
	grid := make([][]rune, h)
	for row := range grid {
		grid[row] = make([]rune, w)
		for col := range grid[row] {
			grid[row][col] = ' '
		}
	}
	if len(v.frames) == 0 || w < 2 || h < 2 {
		return grid
	}

	rows := h - 1
	sx := (v.world.maxX - v.world.minX) / float64(w)
	sy := (v.world.maxY - v.world.minY) / float64(rows)
	toRow := func(y float64) int { return int((v.world.maxY - y) / sy) }

	for _, y := range v.lanes {
		if row := toRow(y); row >= 0 && row < rows {
			for col := 0; col < w; col++ {
				grid[row][col] = glyphLane
			}
		}
	}

	f := v.frames[v.idx]
	for row := 0; row < rows; row++ {
		for col := 0; col < w; col++ {
			p := geom.V(v.world.minX+(float64(col)+0.5)*sx, v.world.maxY-(float64(row)+0.5)*sy)
			inEgo := geom.PointInRect(p, f.Ego.Vertices)
			inNPC := geom.PointInRect(p, f.NPC.Vertices)
			switch {
			case inEgo && inNPC:
				grid[row][col] = glyphOverlap
			case inEgo:
				grid[row][col] = glyphEgo
			case inNPC:
				grid[row][col] = glyphNPC
			}
		}
	}

	status := fmt.Sprintf("t=%.2fs frame %d/%d ego %.1f km/h brake %s",
		f.Timestamp, v.idx+1, len(v.frames), f.Ego.Speed*3.6, f.BrakeState)
	if f.Collision {
		status += " COLLISION"
	}
	if v.paused {
		status += " [paused]"
	}
	for i, r := range []rune(status) {
		if i >= w {
			break
		}
		grid[h-1][i] = r
	}
	return grid
}

// Draw renders the current frame to the screen.
func (v *Viewer) Draw() {
	w, h := v.screen.Size()
	v.screen.Clear()
	for row, line := range v.canvas(w, h) {
		for col, r := range line {
			style, ok := styles[r]
			if !ok {
				style = tcell.StyleDefault
			}
			v.screen.SetContent(col, row, r, nil, style)
		}
	}
	v.screen.Show()
}

// handleKey applies a key press and reports whether the viewer should quit.
func (v *Viewer) handleKey(key tcell.Key, r rune) bool {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRight:
		v.step(1)
	case tcell.KeyLeft:
		v.step(-1)
	case tcell.KeyRune:
		switch r {
		case 'q':
			return true
		case ' ':
			v.paused = !v.paused
		case 'l':
			v.step(1)
		case 'h':
			v.step(-1)
		}
	}
	return false
}

// HandleEvent applies a terminal event and reports whether the viewer should quit.
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return v.handleKey(ev.Key(), ev.Rune())
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return false
}

// Run plays the frames, one every interval, until the user quits or ctx is done. The
// last frame stays on screen once reached.
func (v *Viewer) Run(ctx context.Context, interval time.Duration) error {
	if len(v.frames) == 0 {
		return fmt.Errorf("viewer: no frames to show")
	}
	events := make(chan tcell.Event)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(events)
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	v.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok || v.HandleEvent(ev) {
				return nil
			}
		case <-ticker.C:
			if !v.paused {
				v.step(1)
			}
		}
		v.Draw()
	}
}
