package control

import (
	"math"
	"testing"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
)

func TestPIDProportional(t *testing.T) {
	p := NewPID(config.PIDGains{Kp: 2})
	if got := p.RunWithRate(0.01, 1, 3, 0); got != 4 {
		t.Fatalf("Run = %v, want 4", got)
	}
}

func TestPIDSaturates(t *testing.T) {
	p := NewPID(config.PIDGains{Kp: 10, Max: 1})
	if got := p.RunWithRate(0.01, 0, 5, 0); got != 1 {
		t.Fatalf("Run = %v, want 1", got)
	}
	if got := p.RunWithRate(0.01, 0, -5, 0); got != -1 {
		t.Fatalf("Run = %v, want -1", got)
	}
}

func TestPIDDerivativeOnMeasurement(t *testing.T) {
	p := NewPID(config.PIDGains{Kd: 1})
	if got := p.Run(0.1, 0, 0); got != 0 {
		t.Fatalf("first Run = %v, want 0", got)
	}
	// x rose by 0.5 over 0.1 s; a moving setpoint contributes nothing
	if got := p.Run(0.1, 0.5, 100); math.Abs(got+5) > 1e-12 {
		t.Fatalf("Run = %v, want -5", got)
	}
}

func TestPIDIntegratorAntiWindup(t *testing.T) {
	p := NewPID(config.PIDGains{Ki: 1, Max: 0.5})
	for i := 0; i < 1000; i++ {
		if got := p.RunWithRate(0.01, 0, 1, 0); got > 0.5 {
			t.Fatalf("step %d output %v above limit", i, got)
		}
	}
	// an unwound integrator responds as soon as the error reverses
	p.RunWithRate(0.01, 0, -1, 0)
	if got := p.RunWithRate(0.01, 0, -1, 0); got >= 0.5 {
		t.Fatalf("output after reversal = %v, integrator wound up", got)
	}
}

func TestPIDReset(t *testing.T) {
	p := NewPID(config.PIDGains{Ki: 1, Kd: 1})
	p.Run(0.1, 0, 1)
	p.Run(0.1, 1, 1)
	p.Reset()
	if got := p.Run(0.1, 3, 3); got != 0 {
		t.Fatalf("Run after Reset = %v, want 0", got)
	}
}
