package braking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 0.02

// drive ticks the controller from t=0 until end, detecting a risk at riskAt and
// activating AEB at aebAt (negative disables), and returns the decel after each tick
// keyed by the tick start time.
func drive(c *Controller, end, riskAt, aebAt float64) (times, decels []float64) {
	var decel float64
	for i := 0; ; i++ {
		now := float64(i) * dt
		if now > end {
			return times, decels
		}
		if now >= riskAt {
			c.DetectRisk(now)
		}
		if aebAt >= 0 && now >= aebAt {
			c.ActivateAEB()
		}
		decel = c.Update(now, decel)
		times = append(times, now)
		decels = append(decels, decel)
	}
}

func TestControllerStartsNormal(t *testing.T) {
	c := NewController(Params{}, dt)

	assert.Equal(t, StateNormal, c.State())
	assert.Equal(t, -1.0, c.DecisionTime())
	assert.Equal(t, DefaultParams(), c.Params())
	assert.Zero(t, c.Update(5, 0), "no braking without a risk")
}

func TestDetectRiskIsSticky(t *testing.T) {
	c := NewController(Params{}, dt)

	c.DetectRisk(1.0)
	c.DetectRisk(3.0)

	assert.Equal(t, StateRiskDetected, c.State())
	assert.InDelta(t, 1.4, c.DecisionTime(), 1e-12)
}

func TestBrakingTimeline(t *testing.T) {
	p := DefaultParams()
	c := NewController(p, dt)

	times, decels := drive(c, 3, 0, -1)
	require.NotEmpty(t, decels)

	reachedAt := -1.0
	prev := 0.0
	for i, now := range times {
		d := decels[i]
		assert.GreaterOrEqual(t, d, prev, "decel must be non-decreasing at t=%.2f", now)
		prev = d

		if now < p.RiskEvalTime+p.PedalDelay-1e-9 {
			assert.Zero(t, d, "decel changed before pedal actuation at t=%.2f", now)
		}
		if reachedAt < 0 && d >= p.MaxDecel {
			reachedAt = now
		}
		assert.LessOrEqual(t, d, p.MaxDecel)
	}

	require.GreaterOrEqual(t, reachedAt, 0.0, "max deceleration never reached")
	assert.LessOrEqual(t, reachedAt, p.RiskEvalTime+p.PedalDelay+p.JerkTime+dt)
	assert.Equal(t, StateBraking, c.State())
}

func TestAEBOverride(t *testing.T) {
	p := DefaultParams()
	c := NewController(p, dt)

	times, decels := drive(c, 3, 0, 1.4)

	var atTransition float64
	for i, now := range times {
		if now < 1.4-1e-9 {
			atTransition = decels[i]
		}
	}
	require.Greater(t, atTransition, 0.0)
	require.Less(t, atTransition, p.MaxDecel)

	last := decels[len(decels)-1]
	assert.InDelta(t, p.AEBMaxDecel, last, 1e-9)
	assert.Equal(t, StateAEB, c.State())

	// AEB reaches its ceiling within its own jerk time.
	for i, now := range times {
		if now >= 1.4+p.AEBJerkTime+dt {
			assert.InDelta(t, p.AEBMaxDecel, decels[i], 1e-9)
		}
	}
}

func TestParamsDefaults(t *testing.T) {
	c := NewController(Params{MaxDecel: 5}, 0.1)
	got := c.Params()

	assert.Equal(t, 5.0, got.MaxDecel)
	assert.Equal(t, DefaultParams().JerkTime, got.JerkTime)
	assert.Equal(t, DefaultParams().AEBMaxDecel, got.AEBMaxDecel)
}

func TestParamsNonPositiveUseDefaults(t *testing.T) {
	d := DefaultParams()
	got := NewController(Params{RiskEvalTime: -1, PedalDelay: -0.5, JerkTime: -2, AEBMaxDecel: -3}, dt).Params()

	assert.Equal(t, d, got)

	c := NewController(Params{RiskEvalTime: -1}, dt)
	c.DetectRisk(1.0)
	assert.InDelta(t, 1.0+d.RiskEvalTime, c.DecisionTime(), 1e-12, "decision must never precede the risk")
}

func TestPeakDecel(t *testing.T) {
	p := DefaultParams()
	c := NewController(p, dt)
	assert.Equal(t, p.MaxDecel, c.PeakDecel())

	c.ActivateAEB()
	assert.Equal(t, p.AEBMaxDecel, c.PeakDecel())
}
