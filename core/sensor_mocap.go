package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/model"
)

// mocapSample is a marker pose stamped with its sample time.
type mocapSample struct {
	T    float64
	Pose model.Xform
}

// mocapChannel samples the marker pose and holds each sample for a noisy
// transmission delay.
type mocapChannel struct {
	gate  rateGate
	noise *noiseStream

	bodyToMarker model.Xform
	posNoise     float64
	attNoise     float64
	offset       float64
	delay        float64
	delayNoise   float64

	pending DelayQueue[mocapSample]
	R       *mat.SymDense
}

func newMocapChannel(cfg config.MocapConfig, seed int64) *mocapChannel {
	return &mocapChannel{
		gate:         newRateGate(cfg.UpdateRate),
		noise:        newNoiseStream(seed, streamMocap),
		bodyToMarker: model.Xform{T: config.Vec3(cfg.PBM), Q: config.Quat(cfg.QBM)},
		posNoise:     stdev(cfg.UseTruth, cfg.PositionStdev),
		attNoise:     stdev(cfg.UseTruth, cfg.AttitudeStdev),
		offset:       cfg.TimeOffset,
		delay:        cfg.TransmissionTime,
		delayNoise:   cfg.TransmissionStdev,
		R: diagCov(
			cfg.PositionStdev, cfg.PositionStdev, cfg.PositionStdev,
			cfg.AttitudeStdev, cfg.AttitudeStdev, cfg.AttitudeStdev,
		),
	}
}

// capture queues a marker pose sample when the channel is due.
func (c *mocapChannel) capture(t float64, x model.State) {
	if !c.gate.due(t) {
		return
	}
	marker := x.Pose().Mul(c.bodyToMarker)
	z := model.Xform{
		T: r3.Add(marker.T, c.noise.NormalVec(c.posNoise)),
		Q: marker.Q.BoxPlus(c.noise.NormalVec(c.attNoise)),
	}
	release := t + math.Max(0, c.delay+c.noise.Normal(c.delayNoise))
	c.pending.Push(release, mocapSample{T: t - c.offset, Pose: z})
}

// deliver returns every sample whose release time has been reached.
func (c *mocapChannel) deliver(t float64) []mocapSample {
	return c.pending.PopDue(t)
}
