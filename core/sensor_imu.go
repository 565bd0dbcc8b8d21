package core

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/model"
)

// imuChannel adds random-walk biases and white noise to the dynamics' IMU
// output.
type imuChannel struct {
	gate  rateGate
	noise *noiseStream

	accelNoise, accelWalk float64
	gyroNoise, gyroWalk   float64
	accelBias, gyroBias   r3.Vec

	R *mat.SymDense
}

func newIMUChannel(cfg config.IMUConfig, seed int64) *imuChannel {
	c := &imuChannel{
		gate:       newRateGate(cfg.UpdateRate),
		noise:      newNoiseStream(seed, streamIMU),
		accelNoise: stdev(cfg.UseAccelTruth, cfg.AccelNoiseStdev),
		accelWalk:  stdev(cfg.UseAccelTruth, cfg.AccelBiasWalk),
		gyroNoise:  stdev(cfg.UseGyroTruth, cfg.GyroNoiseStdev),
		gyroWalk:   stdev(cfg.UseGyroTruth, cfg.GyroBiasWalk),
		// reported with the configured noise even when truth is used
		R: diagCov(
			cfg.AccelNoiseStdev, cfg.AccelNoiseStdev, cfg.AccelNoiseStdev,
			cfg.GyroNoiseStdev, cfg.GyroNoiseStdev, cfg.GyroNoiseStdev,
		),
	}
	c.accelBias = c.noise.UniformVec(stdev(cfg.UseAccelTruth, cfg.AccelInitStdev))
	c.gyroBias = c.noise.UniformVec(stdev(cfg.UseGyroTruth, cfg.GyroInitStdev))
	return c
}

// sample returns the measured IMU at t when the channel is due.
func (c *imuChannel) sample(t float64, truth model.IMU) (model.IMU, bool) {
	dt := t - c.gate.last
	if !c.gate.due(t) {
		return model.IMU{}, false
	}

	c.accelBias = r3.Add(c.accelBias, r3.Scale(dt, c.noise.NormalVec(c.accelWalk)))
	c.gyroBias = r3.Add(c.gyroBias, r3.Scale(dt, c.noise.NormalVec(c.gyroWalk)))

	return model.IMU{
		Accel: r3.Add(r3.Add(truth.Accel, c.accelBias), c.noise.NormalVec(c.accelNoise)),
		Gyro:  r3.Add(r3.Add(truth.Gyro, c.gyroBias), c.noise.NormalVec(c.gyroNoise)),
	}, true
}
