package core

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// Noise stream indices. Every channel draws from its own stream so that
// enabling or disabling one channel leaves the others' samples unchanged.
const (
	streamDynamics uint64 = iota
	streamIMU
	streamCamera
	streamAltimeter
	streamMocap
	streamVO
	streamGNSS
	streamRawGNSS
	streamEnvironment
)

// noiseStream is an independent Gaussian/uniform generator. Draws are always
// taken, even at zero deviation, so a stream's sequence depends only on its
// seed and the number of calls.
type noiseStream struct {
	normal  distuv.Normal
	uniform distuv.Uniform
}

func newNoiseStream(seed int64, stream uint64) *noiseStream {
	src := rand.NewPCG(uint64(seed), stream)
	return &noiseStream{
		normal:  distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		uniform: distuv.Uniform{Min: 0, Max: 1, Src: src},
	}
}

// Normal returns a zero-mean sample with the given standard deviation.
func (n *noiseStream) Normal(stdev float64) float64 {
	return n.normal.Rand() * stdev
}

// NormalVec returns a vector of independent zero-mean samples.
func (n *noiseStream) NormalVec(stdev float64) r3.Vec {
	return r3.Vec{X: n.Normal(stdev), Y: n.Normal(stdev), Z: n.Normal(stdev)}
}

// Uniform returns a sample from [lo, hi).
func (n *noiseStream) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*n.uniform.Rand()
}

// UniformVec returns a vector with components uniform in [-bound, bound).
func (n *noiseStream) UniformVec(bound float64) r3.Vec {
	return r3.Vec{
		X: n.Uniform(-bound, bound),
		Y: n.Uniform(-bound, bound),
		Z: n.Uniform(-bound, bound),
	}
}

// stdev returns s, or zero when truth is requested.
func stdev(truth bool, s float64) float64 {
	if truth {
		return 0
	}
	return s
}
