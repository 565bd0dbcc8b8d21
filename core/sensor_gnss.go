package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/model"
	"github.com/signalsfoundry/multirotor-sim/timectrl"
)

// receiverECEF returns the ECEF position and velocity of a vehicle in
// state x, given the NED-to-ECEF transform.
func receiverECEF(nedToECEF model.Xform, x model.State) (pos, vel r3.Vec) {
	return nedToECEF.Transforma(x.P), nedToECEF.Q.Rota(x.Q.Rota(x.V))
}

// gnssChannel synthesizes an ECEF position and velocity fix.
type gnssChannel struct {
	gate      rateGate
	noise     *noiseStream
	nedToECEF model.Xform

	hNoise, vNoise, velNoise float64

	R *mat.SymDense // 6×6, position then velocity
}

func newGNSSChannel(cfg config.GNSSConfig, nedToECEF model.Xform, seed int64) *gnssChannel {
	return &gnssChannel{
		gate:      newRateGate(cfg.UpdateRate),
		noise:     newNoiseStream(seed, streamGNSS),
		nedToECEF: nedToECEF,
		hNoise:    stdev(cfg.UseTruth, cfg.HorizontalStdev),
		vNoise:    stdev(cfg.UseTruth, cfg.VerticalStdev),
		velNoise:  stdev(cfg.UseTruth, cfg.VelocityStdev),
		R:         gnssCovariance(nedToECEF.Q, cfg.HorizontalStdev, cfg.VerticalStdev, cfg.VelocityStdev),
	}
}

// gnssCovariance rotates the local horizontal/vertical position variances
// into ECEF and appends an isotropic velocity block.
func gnssCovariance(nedToECEF model.Quat, h, v, vel float64) *mat.SymDense {
	rot := nedToECEF.Matrix()
	local := mat.NewDiagDense(3, []float64{h * h, h * h, v * v})

	var tmp, pos mat.Dense
	tmp.Mul(rot, local)
	pos.Mul(&tmp, rot.T())

	R := mat.NewSymDense(6, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			R.SetSym(i, j, (pos.At(i, j)+pos.At(j, i))/2)
		}
		R.SetSym(i+3, i+3, vel*vel)
	}
	return R
}

func (c *gnssChannel) sample(t float64, x model.State) (model.GNSSFix, bool) {
	if !c.gate.due(t) {
		return model.GNSSFix{}, false
	}
	pNED := r3.Add(x.P, r3.Vec{
		X: c.noise.Normal(c.hNoise),
		Y: c.noise.Normal(c.hNoise),
		Z: c.noise.Normal(c.vNoise),
	})
	_, vel := receiverECEF(c.nedToECEF, x)
	return model.GNSSFix{
		Pos: c.nedToECEF.Transforma(pNED),
		Vel: r3.Add(vel, c.noise.NormalVec(c.velNoise)),
	}, true
}

// rawSample is one satellite's observation.
type rawSample struct {
	Sat *Satellite
	Z   model.RawObservation
}

// rawGNSSChannel synthesizes pseudorange, Doppler and carrier phase for
// every usable satellite above the elevation mask. The receiver clock bias
// and drift follow a random walk.
type rawGNSSChannel struct {
	gate      rateGate
	noise     *noiseStream
	nedToECEF model.Xform
	start     timectrl.GTime
	mask      float64
	truth     bool

	prNoise, prrNoise, cpNoise float64
	clockWalk                  float64
	clock                      [2]float64 // bias (s), drift (s/s)

	sats      []*Satellite
	ambiguity []float64
	locked    []bool

	// R is built from the effective noise levels, so use_truth reports a
	// zero covariance. The other channels report their configured stdevs
	// even when the measurement itself is noiseless.
	R *mat.SymDense
}

func newRawGNSSChannel(cfg config.RawGNSSConfig, rate float64, nedToECEF model.Xform, sats []*Satellite, seed int64) *rawGNSSChannel {
	c := &rawGNSSChannel{
		gate:      newRateGate(rate),
		noise:     newNoiseStream(seed, streamRawGNSS),
		nedToECEF: nedToECEF,
		start:     timectrl.NewGTime(cfg.StartWeek, cfg.StartTowSec),
		mask:      cfg.ElevationMask,
		truth:     cfg.UseTruth,
		prNoise:   stdev(cfg.UseTruth, cfg.PseudorangeStdev),
		prrNoise:  stdev(cfg.UseTruth, cfg.PseudorangeRateStdev),
		cpNoise:   stdev(cfg.UseTruth, cfg.CarrierPhaseStdev),
		clockWalk: stdev(cfg.UseTruth, cfg.ClockWalkStdev),
		sats:      sats,
		ambiguity: make([]float64, len(sats)),
		locked:    make([]bool, len(sats)),
	}
	// after use_truth has zeroed the stdevs
	c.R = diagCov(c.prNoise, c.prrNoise, c.cpNoise)
	c.clock[0] = c.noise.Uniform(-1, 1) * cfg.ClockInitStdev
	return c
}

// gpsTime converts simulation time to GNSS time.
func (c *rawGNSSChannel) gpsTime(t float64) timectrl.GTime { return c.start.Add(t) }

// acquire fixes the integer carrier ambiguity of satellite i at first lock.
func (c *rawGNSSChannel) acquire(i int) float64 {
	if !c.locked[i] {
		c.locked[i] = true
		if !c.truth {
			c.ambiguity[i] = math.Round(c.noise.Uniform(0, 1)*100) - 50
		}
	}
	return c.ambiguity[i]
}

func (c *rawGNSSChannel) sample(t float64, x model.State) (timectrl.GTime, []rawSample, bool) {
	dt := t - c.gate.last
	if !c.gate.due(t) {
		return timectrl.GTime{}, nil, false
	}
	c.clock[1] += c.noise.Normal(c.clockWalk) * dt
	c.clock[0] += c.clock[1] * dt

	now := c.gpsTime(t)
	pos, vel := receiverECEF(c.nedToECEF, x)

	out := make([]rawSample, 0, len(c.sats))
	for i, sat := range c.sats {
		if !sat.Usable(now) {
			continue
		}
		satPos, _, _ := sat.PositionVelocityClock(now)
		if _, el := sat.AzimuthElevation(pos, r3.Sub(satPos, pos)); el <= c.mask {
			continue
		}
		z := sat.Measurement(now, pos, vel, c.clock)
		z.Pseudorange += c.noise.Normal(c.prNoise)
		z.PseudorangeRate += c.noise.Normal(c.prrNoise)
		z.CarrierPhase += c.noise.Normal(c.cpNoise) + c.acquire(i)
		out = append(out, rawSample{Sat: sat, Z: z})
	}
	return now, out, true
}
