package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Measurement channel names, in dispatch order.
const (
	ChannelIMU       = "imu"
	ChannelCamera    = "camera"
	ChannelAltimeter = "altimeter"
	ChannelMocap     = "mocap"
	ChannelVO        = "vo"
	ChannelGNSS      = "gnss"
	ChannelRawGNSS   = "raw_gnss"
)

// Channels lists every measurement channel in dispatch order.
var Channels = []string{
	ChannelIMU,
	ChannelCamera,
	ChannelAltimeter,
	ChannelMocap,
	ChannelVO,
	ChannelGNSS,
	ChannelRawGNSS,
}

// rateGate decides when a channel samples. The elapsed time is rounded to
// 0.1 ms so that tick boundaries are not lost to floating-point jitter, and
// the gate restarts from the firing time rather than the ideal one.
type rateGate struct {
	period float64
	last   float64
}

func newRateGate(rate float64) rateGate {
	return rateGate{period: 1 / rate}
}

// due reports whether the channel fires at t and, if so, records t as the
// last firing.
func (g *rateGate) due(t float64) bool {
	if math.Round((t-g.last)*1e4)/1e4 < g.period {
		return false
	}
	g.last = t
	return true
}

// diagCov builds a diagonal covariance from standard deviations.
func diagCov(stdevs ...float64) *mat.SymDense {
	c := mat.NewSymDense(len(stdevs), nil)
	for i, s := range stdevs {
		c.SetSym(i, i, s*s)
	}
	return c
}
