package model

import "github.com/signalsfoundry/multirotor-sim/timectrl"

// OrbitSource indicates how a satellite's orbit is determined.
type OrbitSource int

const (
	OrbitSourceUnknown   OrbitSource = iota
	OrbitSourceBroadcast             // GPS LNAV broadcast ephemeris
	OrbitSourceSpacetrack            // TLE-based SGP4 propagation
)

func (s OrbitSource) String() string {
	switch s {
	case OrbitSourceBroadcast:
		return "broadcast"
	case OrbitSourceSpacetrack:
		return "spacetrack"
	default:
		return "unknown"
	}
}

// Ephemeris holds one set of broadcast orbital and clock parameters. Angles
// are in radians, rates in rad/s, distances in metres.
type Ephemeris struct {
	Sat  int // satellite number (PRN)
	IODE int
	IODC int
	SVA  int
	SVH  int
	Week int

	Toe timectrl.GTime // time of ephemeris
	Toc timectrl.GTime // time of clock
	Ttr timectrl.GTime // transmission time

	A    float64 // semi-major axis
	E    float64
	I0   float64
	OMG0 float64 // longitude of ascending node at weekly epoch
	Omg  float64 // argument of perigee
	M0   float64
	Deln float64 // mean motion difference
	OMGd float64 // rate of right ascension
	Idot float64

	Crc, Crs float64 // radius harmonic corrections
	Cuc, Cus float64 // argument of latitude harmonic corrections
	Cic, Cis float64 // inclination harmonic corrections

	Toes float64 // toe in seconds of week
	Fit  float64
	F0   float64 // clock bias
	F1   float64 // clock drift
	F2   float64 // clock drift rate
	Tgd  float64
}

// Valid reports whether e carries orbit data. A non-positive semi-major axis
// means no data.
func (e *Ephemeris) Valid() bool { return e != nil && e.A > 0 }

// IonoParams are the broadcast Klobuchar coefficients α0..α3, β0..β3.
type IonoParams struct {
	Alpha [4]float64
	Beta  [4]float64
}

// DefaultIonoParams returns the coefficients used when no navigation message
// provides them.
func DefaultIonoParams() IonoParams {
	return IonoParams{
		Alpha: [4]float64{0.1118e-07, -0.7451e-08, -0.5961e-07, 0.1192e-06},
		Beta:  [4]float64{0.1167e+06, -0.2294e+06, -0.1311e+06, 0.1049e+07},
	}
}

// SatelliteDefinition describes one satellite in a scenario.
type SatelliteDefinition struct {
	ID     int
	Name   string
	Source OrbitSource

	Ephemeris *Ephemeris // OrbitSourceBroadcast

	// OrbitSourceSpacetrack
	TLELine1 string
	TLELine2 string
}
