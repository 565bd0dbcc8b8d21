package core

import (
	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/model"
)

type altimeterChannel struct {
	gate       rateGate
	noise      *noiseStream
	noiseStdev float64
	R          *mat.SymDense
}

func newAltimeterChannel(cfg config.AltimeterConfig, seed int64) *altimeterChannel {
	return &altimeterChannel{
		gate:       newRateGate(cfg.UpdateRate),
		noise:      newNoiseStream(seed, streamAltimeter),
		noiseStdev: stdev(cfg.UseTruth, cfg.NoiseStdev),
		R:          diagCov(cfg.NoiseStdev),
	}
}

// sample returns the height above the NED origin.
func (c *altimeterChannel) sample(t float64, x model.State) (float64, bool) {
	if !c.gate.due(t) {
		return 0, false
	}
	return -x.P.Z + c.noise.Normal(c.noiseStdev), true
}
