package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/model"
	"github.com/signalsfoundry/multirotor-sim/timectrl"
)

// KlobucharDelay returns the L1 ionospheric delay (m) of the broadcast
// Klobuchar model for a receiver at lla (lat, lon in radians, height in m)
// observing a satellite at azimuth az and elevation el. Receivers below
// -1 km and satellites at or below the horizon see no delay.
func KlobucharDelay(p model.IonoParams, t timectrl.GTime, lla r3.Vec, az, el float64) float64 {
	if lla.Z < -1e3 || el <= 0 {
		return 0
	}

	// Earth-centred angle (semicircles)
	psi := 0.0137/(el/math.Pi+0.11) - 0.022

	// sub-ionospheric latitude and longitude (semicircles)
	phi := lla.X/math.Pi + psi*math.Cos(az)
	phi = math.Max(-0.416, math.Min(0.416, phi))
	lam := lla.Y/math.Pi + psi*math.Sin(az)/math.Cos(phi*math.Pi)

	// geomagnetic latitude
	phi += 0.064 * math.Cos((lam-1.617)*math.Pi)

	tt := 43200*lam + t.TowSec
	tt -= math.Floor(tt/timectrl.SecondsInDay) * timectrl.SecondsInDay

	// slant factor
	f := 1 + 16*math.Pow(0.53-el/math.Pi, 3)

	a, b := p.Alpha, p.Beta
	amp := a[0] + phi*(a[1]+phi*(a[2]+phi*a[3]))
	per := b[0] + phi*(b[1]+phi*(b[2]+phi*b[3]))
	amp = math.Max(amp, 0)
	per = math.Max(per, 72000)

	x := 2 * math.Pi * (tt - 50400) / per
	if math.Abs(x) < 1.57 {
		return SpeedOfLight * f * (5e-9 + amp*(1+x*x*(-0.5+x*x/24)))
	}
	return SpeedOfLight * f * 5e-9
}
