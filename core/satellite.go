package core

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/model"
	"github.com/signalsfoundry/multirotor-sim/timectrl"
)

const (
	// FreqL1 is the GPS L1 carrier frequency (Hz).
	FreqL1 = 1575.42e6
	// LambdaL1 is the GPS L1 carrier wavelength (m).
	LambdaL1 = SpeedOfLight / FreqL1
)

// Satellite pairs an orbit source with the broadcast ionosphere model and
// synthesizes observations of it from a receiver.
type Satellite struct {
	ID     int
	Name   string
	Source model.OrbitSource

	orbit OrbitModel
	iono  model.IonoParams
}

// NewSatellite builds a satellite from its definition.
func NewSatellite(def model.SatelliteDefinition, iono model.IonoParams) (*Satellite, error) {
	orbit, err := NewOrbitModel(def)
	if err != nil {
		return nil, fmt.Errorf("NewSatellite: %w", err)
	}
	return &Satellite{
		ID:     def.ID,
		Name:   def.Name,
		Source: def.Source,
		orbit:  orbit,
		iono:   iono,
	}, nil
}

func (s *Satellite) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("sat%d", s.ID)
}

// Usable reports whether the satellite's orbit may be evaluated at t.
func (s *Satellite) Usable(t timectrl.GTime) bool { return s.orbit.Usable(t) }

// PositionVelocityClock returns the satellite ECEF position, velocity and
// clock bias/drift at t.
func (s *Satellite) PositionVelocityClock(t timectrl.GTime) (pos, vel r3.Vec, clk [2]float64) {
	return s.orbit.PositionVelocityClock(t)
}

// AzimuthElevation returns the azimuth and elevation of los as seen from
// recPos.
func (s *Satellite) AzimuthElevation(recPos, los r3.Vec) (az, el float64) {
	return AzimuthElevation(recPos, los)
}

// IonosphericDelay returns the Klobuchar delay (m) for a receiver at lla.
func (s *Satellite) IonosphericDelay(t timectrl.GTime, lla r3.Vec, az, el float64) float64 {
	return KlobucharDelay(s.iono, t, lla, az, el)
}

// Measurement synthesizes the pseudorange, pseudorange rate and carrier
// phase observed at reception time t by a receiver at recPos moving with
// recVel whose clock bias and drift are recClk (s, s/s). The satellite is
// moved back along its velocity over the signal transit time and the Earth
// rotation during transit is applied. The carrier phase excludes the integer
// ambiguity.
func (s *Satellite) Measurement(t timectrl.GTime, recPos, recVel r3.Vec, recClk [2]float64) model.RawObservation {
	satPos, satVel, satClk := s.orbit.PositionVelocityClock(t)

	tau := r3.Norm(r3.Sub(satPos, recPos)) / SpeedOfLight
	satPos = r3.Sub(satPos, r3.Scale(tau, satVel))
	wt := EarthRotationRate * tau
	satPos = r3.Vec{
		X: satPos.X + satPos.Y*wt,
		Y: satPos.Y - satPos.X*wt,
		Z: satPos.Z,
	}

	los := r3.Sub(satPos, recPos)
	rng := r3.Norm(los)
	az, el := AzimuthElevation(recPos, los)
	ion := s.IonosphericDelay(t, ECEF2LLA(recPos), az, el)

	clkTerm := SpeedOfLight * (recClk[0] - satClk[0])
	rate := r3.Dot(r3.Sub(satVel, recVel), r3.Scale(1/rng, los)) +
		SpeedOfLight*(recClk[1]-satClk[1])

	return model.RawObservation{
		Pseudorange:     rng + clkTerm + ion,
		PseudorangeRate: rate,
		CarrierPhase:    (rng + clkTerm - ion) / LambdaL1,
	}
}
