package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/model"
)

// WGS-84 ellipsoid.
const (
	WGS84A  = 6378137.0
	WGS84F  = 1.0 / 298.257223563
	WGS84E2 = WGS84F * (2 - WGS84F)

	// EarthRotationRate is the WGS-84 value of the Earth's angular velocity (rad/s).
	EarthRotationRate = 7.2921151467e-5
	// GravConst is the WGS-84 Earth gravitational constant (m³/s²).
	GravConst = 3.986005e14
	// SpeedOfLight in vacuum (m/s).
	SpeedOfLight = 299792458.0
)

// LLA2ECEF converts geodetic latitude, longitude (radians) and ellipsoidal
// height (m), packed as X, Y, Z, to ECEF metres.
func LLA2ECEF(lla r3.Vec) r3.Vec {
	sinLat, cosLat := math.Sincos(lla.X)
	sinLon, cosLon := math.Sincos(lla.Y)
	n := WGS84A / math.Sqrt(1-WGS84E2*sinLat*sinLat)
	return r3.Vec{
		X: (n + lla.Z) * cosLat * cosLon,
		Y: (n + lla.Z) * cosLat * sinLon,
		Z: (n*(1-WGS84E2) + lla.Z) * sinLat,
	}
}

// ECEF2LLA converts ECEF metres to geodetic latitude, longitude and height.
func ECEF2LLA(p r3.Vec) r3.Vec {
	r2 := p.X*p.X + p.Y*p.Y
	z, zk := p.Z, 0.0
	v := WGS84A
	for math.Abs(z-zk) >= 1e-4 {
		zk = z
		s := z / math.Sqrt(r2+z*z)
		v = WGS84A / math.Sqrt(1-WGS84E2*s*s)
		z = p.Z + v*WGS84E2*s
	}

	var lat, lon float64
	switch {
	case r2 > 1e-12:
		lat = math.Atan(z / math.Sqrt(r2))
		lon = math.Atan2(p.Y, p.X)
	case p.Z > 0:
		lat = math.Pi / 2
	default:
		lat = -math.Pi / 2
	}
	return r3.Vec{X: lat, Y: lon, Z: math.Sqrt(r2+z*z) - v}
}

// NEDToECEF returns the transform from the local north-east-down frame
// anchored at the geodetic point lla to ECEF.
func NEDToECEF(lla r3.Vec) model.Xform {
	qLon := model.FromAxisAngle(r3.Vec{Z: 1}, lla.Y)
	qLat := model.FromAxisAngle(r3.Vec{Y: 1}, -lla.X-math.Pi/2)
	return model.Xform{
		T: LLA2ECEF(lla),
		Q: qLon.Mul(qLat),
	}
}

// ecefToENU rotates an ECEF vector into the east-north-up frame at the given
// geodetic latitude and longitude.
func ecefToENU(lat, lon float64, v r3.Vec) r3.Vec {
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	return r3.Vec{
		X: -sinLon*v.X + cosLon*v.Y,
		Y: -sinLat*cosLon*v.X - sinLat*sinLon*v.Y + cosLat*v.Z,
		Z: cosLat*cosLon*v.X + cosLat*sinLon*v.Y + sinLat*v.Z,
	}
}

// AzimuthElevation returns the azimuth (from north, positive east) and
// elevation of the line-of-sight vector los, both ECEF, as seen from a
// receiver at recECEF.
func AzimuthElevation(recECEF, los r3.Vec) (az, el float64) {
	lla := ECEF2LLA(recECEF)
	enu := ecefToENU(lla.X, lla.Y, los)
	n := r3.Norm(enu)
	if n == 0 {
		return 0, math.Pi / 2
	}
	return math.Atan2(enu.X, enu.Y), math.Asin(enu.Z / n)
}
