package core

import (
	"errors"
	"fmt"
	"math"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/model"
	"github.com/signalsfoundry/multirotor-sim/timectrl"
)

// MaxDtoe is the largest |t - toe| (s) at which a broadcast ephemeris may be
// evaluated.
const MaxDtoe = 7200.0

const (
	keplerTol     = 1e-13
	keplerMaxIter = 30
)

// ErrNoOrbitData is returned when a satellite definition carries neither a
// usable ephemeris nor a TLE.
var ErrNoOrbitData = errors.New("no orbit data")

// OrbitModel yields a satellite's ECEF state at a GPS time.
type OrbitModel interface {
	// PositionVelocityClock returns ECEF position (m), velocity (m/s) and the
	// satellite clock bias (s) and drift (s/s).
	PositionVelocityClock(t timectrl.GTime) (pos, vel r3.Vec, clk [2]float64)
	// Usable reports whether the model may be evaluated at t.
	Usable(t timectrl.GTime) bool
}

// BroadcastOrbit propagates a GPS LNAV broadcast ephemeris.
type BroadcastOrbit struct {
	eph model.Ephemeris
}

// NewBroadcastOrbit wraps eph.
func NewBroadcastOrbit(eph model.Ephemeris) *BroadcastOrbit {
	return &BroadcastOrbit{eph: eph}
}

// Ephemeris returns the ephemeris being propagated.
func (o *BroadcastOrbit) Ephemeris() model.Ephemeris { return o.eph }

// Usable reports whether eph carries orbit data and t lies within MaxDtoe of
// its time of ephemeris.
func (o *BroadcastOrbit) Usable(t timectrl.GTime) bool {
	return o.eph.Valid() && math.Abs(t.Sub(o.eph.Toe)) <= MaxDtoe
}

// wrapHalfWeek folds an elapsed time into [-302400, 302400] s.
func wrapHalfWeek(tk float64) float64 {
	switch {
	case tk > timectrl.SecondsInHalfWeek:
		return tk - timectrl.SecondsInWeek
	case tk < -timectrl.SecondsInHalfWeek:
		return tk + timectrl.SecondsInWeek
	}
	return tk
}

// PositionVelocityClock evaluates the broadcast orbit with analytically
// differentiated velocity. Clock terms include the relativistic correction.
func (o *BroadcastOrbit) PositionVelocityClock(t timectrl.GTime) (pos, vel r3.Vec, clk [2]float64) {
	e := &o.eph
	if e.A <= 0 {
		return r3.Vec{}, r3.Vec{}, [2]float64{}
	}

	tk := wrapHalfWeek(t.Sub(e.Toe))
	n0 := math.Sqrt(GravConst / (e.A * e.A * e.A))
	n := n0 + e.Deln
	mk := e.M0 + n*tk

	// Kepler's equation by Newton iteration; keep the last iterate if it
	// fails to converge.
	ek, prev := mk, 0.0
	for i := 0; i < keplerMaxIter && math.Abs(ek-prev) > keplerTol; i++ {
		prev = ek
		ek -= (ek - e.E*math.Sin(ek) - mk) / (1 - e.E*math.Cos(ek))
	}
	sinE, cosE := math.Sincos(ek)
	oneMinusECosE := 1 - e.E*cosE
	sqrt1mE2 := math.Sqrt(1 - e.E*e.E)

	phi := math.Atan2(sqrt1mE2*sinE, cosE-e.E) + e.Omg
	sin2, cos2 := math.Sincos(2 * phi)
	u := phi + e.Cus*sin2 + e.Cuc*cos2
	r := e.A*oneMinusECosE + e.Crs*sin2 + e.Crc*cos2
	inc := e.I0 + e.Idot*tk + e.Cis*sin2 + e.Cic*cos2
	omega := e.OMG0 + (e.OMGd-EarthRotationRate)*tk - EarthRotationRate*e.Toes

	sinU, cosU := math.Sincos(u)
	sinI, cosI := math.Sincos(inc)
	sinO, cosO := math.Sincos(omega)
	x, y := r*cosU, r*sinU
	pos = r3.Vec{
		X: x*cosO - y*cosI*sinO,
		Y: x*sinO + y*cosI*cosO,
		Z: y * sinI,
	}

	dE := n / oneMinusECosE
	dPhi := sqrt1mE2 * dE / oneMinusECosE
	du := dPhi * (1 + 2*(e.Cus*cos2-e.Cuc*sin2))
	dr := e.A*e.E*sinE*dE + 2*dPhi*(e.Crs*cos2-e.Crc*sin2)
	di := e.Idot + 2*dPhi*(e.Cis*cos2-e.Cic*sin2)
	dO := e.OMGd - EarthRotationRate
	dx := dr*cosU - r*sinU*du
	dy := dr*sinU + r*cosU*du
	vel = r3.Vec{
		X: dx*cosO - dy*cosI*sinO + y*sinI*sinO*di - (x*sinO+y*cosI*cosO)*dO,
		Y: dx*sinO + dy*cosI*cosO - y*sinI*cosO*di + (x*cosO-y*cosI*sinO)*dO,
		Z: dy*sinI + y*cosI*di,
	}

	tc := t.Sub(e.Toc)
	rel := -2 * math.Sqrt(GravConst*e.A) * e.E * sinE / (SpeedOfLight * SpeedOfLight)
	dRel := -2 * math.Sqrt(GravConst*e.A) * e.E * cosE * dE / (SpeedOfLight * SpeedOfLight)
	clk[0] = e.F0 + e.F1*tc + e.F2*tc*tc + rel
	clk[1] = e.F1 + 2*e.F2*tc + dRel
	return pos, vel, clk
}

// SGP4Orbit propagates a two-line element set. The clock is modelled as
// perfect.
type SGP4Orbit struct {
	sat satellite.Satellite
}

// NewSGP4Orbit constructs an orbit from TLE lines.
func NewSGP4Orbit(line1, line2 string) *SGP4Orbit {
	return &SGP4Orbit{sat: satellite.TLEToSat(line1, line2, satellite.GravityWGS72)}
}

// Usable always reports true; SGP4 degrades gracefully away from epoch.
func (o *SGP4Orbit) Usable(timectrl.GTime) bool { return true }

// PositionVelocityClock propagates to the whole UTC second at or before t and
// extrapolates linearly over the fraction. go-satellite works in kilometres.
func (o *SGP4Orbit) PositionVelocityClock(t timectrl.GTime) (pos, vel r3.Vec, clk [2]float64) {
	utc := t.UTC()
	frac := float64(utc.Nanosecond()) * 1e-9
	year, month, day := utc.Date()
	hour, minute, sec := utc.Clock()

	posECI, velECI := satellite.Propagate(o.sat, year, int(month), day, hour, minute, sec)
	jd := satellite.JDay(year, int(month), day, hour, minute, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)
	velRot := satellite.ECIToECEF(velECI, gmst)

	const kmToM = 1000.0
	pos = r3.Vec{X: posECEF.X * kmToM, Y: posECEF.Y * kmToM, Z: posECEF.Z * kmToM}
	// remove the frame rotation: v_ecef = R·v_eci - ω × r_ecef
	vel = r3.Sub(
		r3.Vec{X: velRot.X * kmToM, Y: velRot.Y * kmToM, Z: velRot.Z * kmToM},
		r3.Cross(r3.Vec{Z: EarthRotationRate}, pos),
	)
	pos = r3.Add(pos, r3.Scale(frac, vel))
	return pos, vel, clk
}

// NewOrbitModel chooses the orbit source for a satellite definition.
func NewOrbitModel(def model.SatelliteDefinition) (OrbitModel, error) {
	switch def.Source {
	case model.OrbitSourceBroadcast:
		if def.Ephemeris == nil {
			return nil, fmt.Errorf("NewOrbitModel: satellite %d: %w", def.ID, ErrNoOrbitData)
		}
		return NewBroadcastOrbit(*def.Ephemeris), nil
	case model.OrbitSourceSpacetrack:
		if def.TLELine1 == "" || def.TLELine2 == "" {
			return nil, fmt.Errorf("NewOrbitModel: satellite %d: %w", def.ID, ErrNoOrbitData)
		}
		return NewSGP4Orbit(def.TLELine1, def.TLELine2), nil
	default:
		return nil, fmt.Errorf("NewOrbitModel: satellite %d: unknown orbit source %v", def.ID, def.Source)
	}
}
