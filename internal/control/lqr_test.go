package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
)

// A double integrator with weights q1, q2 on position and velocity and r on
// acceleration has gain k1 = sqrt(q1/r), k2 = sqrt(q2/r + 2 k1).
func TestTranslationGainMatchesDoubleIntegrator(t *testing.T) {
	ctl := config.Default().Control
	ctl.LQRQ = [6]float64{4, 10, 0.5, 1, 2, 3}
	ctl.LQRR = [4]float64{1, 0.5, 4, 1}

	k, err := translationGain(ctl)
	require.NoError(t, err)
	rows, cols := k.Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 6, cols)

	for i := 0; i < 3; i++ {
		k1 := math.Sqrt(ctl.LQRQ[i] / ctl.LQRR[i])
		k2 := math.Sqrt(ctl.LQRQ[i+3]/ctl.LQRR[i] + 2*k1)
		for j := 0; j < 6; j++ {
			want := 0.0
			switch j {
			case i:
				want = k1
			case i + 3:
				want = k2
			}
			assert.InDelta(t, want, k.At(i, j), 1e-8, "K[%d][%d]", i, j)
		}
	}
}

func TestSolveLyapunovResidual(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		-1, 0.5, 0,
		0, -2, 1,
		0.3, 0, -1.5,
	})
	q := mat.NewDense(3, 3, []float64{
		2, 0.1, 0,
		0.1, 1, 0.2,
		0, 0.2, 3,
	})
	p, err := solveLyapunov(a, q)
	require.NoError(t, err)

	var atp, pa, res mat.Dense
	atp.Mul(a.T(), p)
	pa.Mul(p, a)
	res.Add(&atp, &pa)
	res.Add(&res, q)
	assert.Less(t, mat.Norm(&res, 2), 1e-9)
	assert.True(t, mat.EqualApprox(p, p.T(), 1e-9), "P not symmetric")
}

func TestTranslationGainRejectsBadInputWeights(t *testing.T) {
	ctl := config.Default().Control
	ctl.LQRR[1] = 0
	_, err := translationGain(ctl)
	assert.Error(t, err)

	ctl = config.Default().Control
	ctl.LQRR[3] = 0
	_, err = translationGain(ctl)
	assert.Error(t, err)
}

func TestApplyGainAndClampNorm(t *testing.T) {
	k, err := translationGain(config.Default().Control)
	require.NoError(t, err)

	a := applyGain(k, r3.Vec{X: 1}, r3.Vec{Y: -1})
	assert.InDelta(t, -2, a.X, 1e-8)
	assert.InDelta(t, math.Sqrt(5), a.Y, 1e-8)
	assert.InDelta(t, 0, a.Z, 1e-8)

	v := clampNorm(r3.Vec{X: 3, Y: 4}, 2.5)
	assert.InDelta(t, 2.5, r3.Norm(v), 1e-12)
	assert.InDelta(t, 1.5, v.X, 1e-12)
	assert.Equal(t, r3.Vec{X: 3, Y: 4}, clampNorm(r3.Vec{X: 3, Y: 4}, 0))
}
