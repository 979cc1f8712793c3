// Package braking models the ego's delayed human braking reaction and the Automatic
// Emergency Braking (AEB) override as a one-way state machine producing a deceleration
// profile over time.
//
//	normal → risk_detected → braking → aeb
//
// No state is re-entered once left. While braking the deceleration ramps towards
// MaxDecel at a fixed jerk; AEB ramps from wherever the human braking left off towards
// AEBMaxDecel.
package braking

import (
	"github.com/samber/lo"
)

const gravity = 9.81 // m/s²

// State is the current phase of the braking state machine.
type State string

const (
	StateNormal       State = "normal"
	StateRiskDetected State = "risk_detected"
	StateBraking      State = "braking"
	StateAEB          State = "aeb"
)

// Params holds the human-reaction and brake-actuation constants. A field that is zero
// or negative takes its DefaultParams value, so an omitted JSON field means the
// reference model and every effective constant is strictly positive.
type Params struct {
	RiskEvalTime float64 `json:"risk_eval_time"` // s, perception/decision delay
	PedalDelay   float64 `json:"pedal_delay"`    // s, from decision to pedal actuation
	JerkTime     float64 `json:"jerk_time"`      // s, from pedal press to MaxDecel
	MaxDecel     float64 `json:"max_decel"`      // m/s²
	AEBJerkTime  float64 `json:"aeb_jerk_time"`  // s, from AEB trigger to AEBMaxDecel
	AEBMaxDecel  float64 `json:"aeb_max_decel"`  // m/s²
}

// DefaultParams returns the reference reaction model.
func DefaultParams() Params {
	return Params{
		RiskEvalTime: 0.4,
		PedalDelay:   0.75,
		JerkTime:     0.6,
		MaxDecel:     0.774 * gravity,
		AEBJerkTime:  0.1,
		AEBMaxDecel:  0.85 * gravity,
	}
}

// withDefaults fills non-positive fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.RiskEvalTime <= 0 {
		p.RiskEvalTime = d.RiskEvalTime
	}
	if p.PedalDelay <= 0 {
		p.PedalDelay = d.PedalDelay
	}
	if p.JerkTime <= 0 {
		p.JerkTime = d.JerkTime
	}
	if p.MaxDecel <= 0 {
		p.MaxDecel = d.MaxDecel
	}
	if p.AEBJerkTime <= 0 {
		p.AEBJerkTime = d.AEBJerkTime
	}
	if p.AEBMaxDecel <= 0 {
		p.AEBMaxDecel = d.AEBMaxDecel
	}
	return p
}

// Controller is the braking state for a single run. The zero value is not usable;
// construct with NewController.
type Controller struct {
	params         Params
	dt             float64
	decisionTime   float64 // -1 until a risk is detected
	brakeActivated bool
	aebActivated   bool
	brakeRate      float64 // decel increment per tick while braking
	aebRate        float64 // decel increment per tick under AEB; 0 until the first AEB tick
}

// NewController returns a controller in the normal state ticking every dt seconds.
// Non-positive fields of p take their default values.
func NewController(p Params, dt float64) *Controller {
	p = p.withDefaults()
	return &Controller{
		params:       p,
		dt:           dt,
		decisionTime: -1,
		brakeRate:    p.MaxDecel / p.JerkTime * dt,
	}
}

// Params returns the effective constants.
func (c *Controller) Params() Params { return c.params }

// State returns the current phase.
func (c *Controller) State() State {
	switch {
	case c.aebActivated:
		return StateAEB
	case c.brakeActivated:
		return StateBraking
	case c.decisionTime >= 0:
		return StateRiskDetected
	default:
		return StateNormal
	}
}

// DecisionTime is the moment the driver decides to brake, or -1 before any risk.
func (c *Controller) DecisionTime() float64 { return c.decisionTime }

func (c *Controller) BrakeActivated() bool { return c.brakeActivated }
func (c *Controller) AEBActivated() bool { return c.aebActivated }

// PeakDecel is the deceleration the current phase ramps towards: AEBMaxDecel once AEB
// has fired, MaxDecel otherwise.
func (c *Controller) PeakDecel() float64 {
	if c.aebActivated {
		return c.params.AEBMaxDecel
	}
	return c.params.MaxDecel
}

// DetectRisk records that a risk was perceived at now. Only the first call has an
// effect: the braking decision is taken RiskEvalTime later.
func (c *Controller) DetectRisk(now float64) {
	if c.decisionTime >= 0 {
		return
	}
	c.decisionTime = now + c.params.RiskEvalTime
}

// ActivateAEB switches to emergency braking. Only the first call has an effect.
func (c *Controller) ActivateAEB() {
	c.aebActivated = true
}

// Update advances the state machine to now and returns the deceleration to command for
// the next tick, given the currently commanded decel. The result never decreases.
func (c *Controller) Update(now, decel float64) float64 {
	if !c.brakeActivated && c.decisionTime >= 0 && now-c.decisionTime >= c.params.PedalDelay {
		c.brakeActivated = true
	}

	switch {
	case c.aebActivated:
		if c.aebRate == 0 {
			c.aebRate = (c.params.AEBMaxDecel - decel) / c.params.AEBJerkTime * c.dt
		}
		if decel < c.params.AEBMaxDecel {
			decel = lo.Clamp(decel+c.aebRate, decel, c.params.AEBMaxDecel)
		}
	case c.brakeActivated:
		if decel < c.params.MaxDecel {
			decel = lo.Clamp(decel+c.brakeRate, decel, c.params.MaxDecel)
		}
	}
	return decel
}
