package model

import "gonum.org/v1/gonum/spatial/r3"

// Xform is a rigid transform from a child frame to its parent frame: T is the
// child origin expressed in the parent frame and Q the child-to-parent rotation.
type Xform struct {
	T r3.Vec
	Q Quat
}

// IdentityXform returns the transform with no translation and no rotation.
func IdentityXform() Xform { return Xform{Q: IdentityQuat()} }

// Mul composes x with y, yielding the transform from y's child frame to x's
// parent frame.
func (x Xform) Mul(y Xform) Xform {
	return Xform{
		T: r3.Add(x.T, x.Q.Rota(y.T)),
		Q: x.Q.Mul(y.Q),
	}
}

// Inverse returns the parent-to-child transform.
func (x Xform) Inverse() Xform {
	return Xform{
		T: r3.Scale(-1, x.Q.Rotp(x.T)),
		Q: x.Q.Inverse(),
	}
}

// Transforma maps a point from the child frame into the parent frame.
func (x Xform) Transforma(v r3.Vec) r3.Vec { return r3.Add(x.T, x.Q.Rota(v)) }

// Transformp maps a point from the parent frame into the child frame.
func (x Xform) Transformp(v r3.Vec) r3.Vec { return x.Q.Rotp(r3.Sub(v, x.T)) }

// Array returns (tx, ty, tz, qw, qx, qy, qz).
func (x Xform) Array() [7]float64 {
	return [7]float64{x.T.X, x.T.Y, x.T.Z, x.Q.Real, x.Q.Imag, x.Q.Jmag, x.Q.Kmag}
}
