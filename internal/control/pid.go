package control

import (
	"math"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
)

// PID is a saturated PID loop with derivative on measurement and a clamped
// integrator.
type PID struct {
	Kp, Ki, Kd float64
	Max        float64 // output magnitude limit; zero means unlimited

	integrator float64
	prevX      float64
	prevErr    float64
	primed     bool
}

// NewPID builds a loop from configured gains.
func NewPID(g config.PIDGains) *PID {
	return &PID{Kp: g.Kp, Ki: g.Ki, Kd: g.Kd, Max: g.Max}
}

// Run drives x toward xc, differentiating x by backward difference.
func (p *PID) Run(dt, x, xc float64) float64 {
	xdot := 0.0
	if p.primed && dt > 0 {
		xdot = (x - p.prevX) / dt
	}
	return p.RunWithRate(dt, x, xc, xdot)
}

// RunWithRate drives x toward xc using the measured rate xdot.
func (p *PID) RunWithRate(dt, x, xc, xdot float64) float64 {
	err := xc - x
	if p.Ki != 0 && p.primed && dt > 0 {
		p.integrator += dt / 2 * (err + p.prevErr)
	}
	p.prevX, p.prevErr, p.primed = x, err, true

	u := p.Kp*err + p.Ki*p.integrator - p.Kd*xdot
	if p.Max <= 0 {
		return u
	}
	sat := saturate(u, p.Max)
	// back the integrator off by the clipped amount
	if p.Ki != 0 && sat != u {
		p.integrator -= (u - sat) / p.Ki
	}
	return sat
}

// Reset clears the loop memory.
func (p *PID) Reset() {
	p.integrator, p.prevX, p.prevErr, p.primed = 0, 0, 0, false
}

func saturate(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
