package control

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
)

const (
	lqrMaxIter   = 50
	lqrTolerance = 1e-10
)

var errGainNotConverged = errors.New("lqr gain iteration did not converge")

// translationGain returns the 3x6 gain of the LQR outer loop. Each NED axis
// is a double integrator with state [position error; velocity error] and the
// commanded acceleration as input.
func translationGain(ctl config.ControlConfig) (*mat.Dense, error) {
	if ctl.LQRR[3] <= 0 {
		return nil, fmt.Errorf("lqr: yaw rate weight must be positive, got %v", ctl.LQRR[3])
	}
	a := mat.NewDense(6, 6, nil)
	b := mat.NewDense(6, 3, nil)
	// [I 2I] stabilizes the double integrator and seeds the iteration.
	k0 := mat.NewDense(3, 6, nil)
	for i := 0; i < 3; i++ {
		a.Set(i, i+3, 1)
		b.Set(i+3, i, 1)
		k0.Set(i, i, 1)
		k0.Set(i, i+3, 2)
	}
	q := mat.NewDiagDense(6, append([]float64(nil), ctl.LQRQ[:]...))
	r := mat.NewDiagDense(3, append([]float64(nil), ctl.LQRR[:3]...))
	return lqrGain(a, b, q, r, k0)
}

// lqrGain solves the continuous algebraic Riccati equation by Newton-Kleinman
// iteration and returns K = R⁻¹BᵀP. k0 must stabilize A - BK.
func lqrGain(a, b *mat.Dense, q, r mat.Matrix, k0 *mat.Dense) (*mat.Dense, error) {
	var rInv mat.Dense
	if err := rInv.Inverse(r); err != nil {
		return nil, fmt.Errorf("lqr: input weights: %w", err)
	}
	var rInvBt mat.Dense
	rInvBt.Mul(&rInv, b.T())

	k := mat.DenseCopyOf(k0)
	for iter := 0; iter < lqrMaxIter; iter++ {
		var bk, acl mat.Dense
		bk.Mul(b, k)
		acl.Sub(a, &bk)

		var rk, qk mat.Dense
		rk.Mul(r, k)
		qk.Mul(k.T(), &rk)
		qk.Add(&qk, q)

		p, err := solveLyapunov(&acl, &qk)
		if err != nil {
			return nil, err
		}

		next := &mat.Dense{}
		next.Mul(&rInvBt, p)
		var step mat.Dense
		step.Sub(next, k)
		k = next
		if mat.Norm(&step, 2) < lqrTolerance {
			return k, nil
		}
	}
	return nil, errGainNotConverged
}

// solveLyapunov returns P with AᵀP + PA = -Q through the Kronecker form of
// the equation. Only suitable for small A.
func solveLyapunov(a, q mat.Matrix) (*mat.Dense, error) {
	n, _ := a.Dims()
	idx := func(i, j int) int { return j*n + i }

	m := mat.NewDense(n*n, n*n, nil)
	rhs := mat.NewVecDense(n*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			row := idx(i, j)
			rhs.SetVec(row, -q.At(i, j))
			for k := 0; k < n; k++ {
				m.Set(row, idx(k, j), m.At(row, idx(k, j))+a.At(k, i))
				m.Set(row, idx(i, k), m.At(row, idx(i, k))+a.At(k, j))
			}
		}
	}

	var vp mat.VecDense
	if err := vp.SolveVec(m, rhs); err != nil {
		return nil, fmt.Errorf("lqr: lyapunov: %w", err)
	}
	p := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p.Set(i, j, vp.AtVec(idx(i, j)))
		}
	}
	return p, nil
}

// applyGain returns -K[ep; ev] as an NED acceleration.
func applyGain(k *mat.Dense, ep, ev r3.Vec) r3.Vec {
	e := mat.NewVecDense(6, []float64{ep.X, ep.Y, ep.Z, ev.X, ev.Y, ev.Z})
	var u mat.VecDense
	u.MulVec(k, e)
	return r3.Vec{X: -u.AtVec(0), Y: -u.AtVec(1), Z: -u.AtVec(2)}
}

// clampNorm scales v down to length limit; a non-positive limit leaves v
// unchanged.
func clampNorm(v r3.Vec, limit float64) r3.Vec {
	if n := r3.Norm(v); limit > 0 && n > limit {
		return r3.Scale(limit/n, v)
	}
	return v
}
