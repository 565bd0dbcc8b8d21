package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Quat is a Hamilton quaternion, scalar first. A unit Quat describes the
// rotation from a child (body) frame to its parent (world) frame.
type Quat quat.Number

// smallAngle is the rotation magnitude below which Exp and Log switch to
// their series expansions.
const smallAngle = 1e-8

// IdentityQuat returns the zero rotation.
func IdentityQuat() Quat { return Quat{Real: 1} }

// NewQuat builds a quaternion from its scalar and vector parts.
func NewQuat(w, x, y, z float64) Quat {
	return Quat{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// FromAxisAngle returns the rotation of angle radians about axis.
func FromAxisAngle(axis r3.Vec, angle float64) Quat {
	n := r3.Norm(axis)
	if n == 0 {
		return IdentityQuat()
	}
	return ExpQuat(r3.Scale(angle/n, axis))
}

// FromEuler returns the ZYX (yaw, pitch, roll) rotation.
func FromEuler(roll, pitch, yaw float64) Quat {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	return Quat{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// ExpQuat maps a rotation vector onto the unit quaternions. ExpQuat of the
// zero vector is exactly the identity.
func ExpQuat(delta r3.Vec) Quat {
	theta := r3.Norm(delta)
	if theta < smallAngle {
		// second order series; exact at zero
		s := 0.5 - theta*theta/48
		return Quat{
			Real: 1 - theta*theta/8,
			Imag: s * delta.X,
			Jmag: s * delta.Y,
			Kmag: s * delta.Z,
		}
	}
	s := math.Sin(theta/2) / theta
	return Quat{
		Real: math.Cos(theta / 2),
		Imag: s * delta.X,
		Jmag: s * delta.Y,
		Kmag: s * delta.Z,
	}
}

// Log returns the rotation vector of q, taking the short way around.
func (q Quat) Log() r3.Vec {
	if q.Real < 0 {
		q = Quat(quat.Scale(-1, quat.Number(q)))
	}
	bar := q.Bar()
	v := r3.Norm(bar)
	if v < smallAngle {
		return r3.Scale(2/q.Real, bar)
	}
	theta := 2 * math.Atan2(v, q.Real)
	return r3.Scale(theta/v, bar)
}

// Bar is the vector part of q.
func (q Quat) Bar() r3.Vec { return r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag} }

// Mul returns the Hamilton product q ⊗ p.
func (q Quat) Mul(p Quat) Quat { return Quat(quat.Mul(quat.Number(q), quat.Number(p))) }

// Inverse returns the conjugate, which is the inverse of a unit quaternion.
func (q Quat) Inverse() Quat { return Quat(quat.Conj(quat.Number(q))) }

// Norm returns the quaternion magnitude.
func (q Quat) Norm() float64 { return quat.Abs(quat.Number(q)) }

// Normalized returns q scaled to unit length.
func (q Quat) Normalized() Quat {
	n := q.Norm()
	if n == 0 {
		return IdentityQuat()
	}
	return Quat(quat.Scale(1/n, quat.Number(q)))
}

// Rota actively rotates v from the child frame into the parent frame.
func (q Quat) Rota(v r3.Vec) r3.Vec {
	b := q.Bar()
	t := r3.Scale(2, r3.Cross(b, v))
	return r3.Add(v, r3.Add(r3.Scale(q.Real, t), r3.Cross(b, t)))
}

// Rotp passively rotates v from the parent frame into the child frame.
func (q Quat) Rotp(v r3.Vec) r3.Vec { return q.Inverse().Rota(v) }

// BoxPlus perturbs q on the right by the rotation vector delta.
func (q Quat) BoxPlus(delta r3.Vec) Quat { return q.Mul(ExpQuat(delta)) }

// BoxMinus returns the rotation vector d such that q0.BoxPlus(d) == q.
func (q Quat) BoxMinus(q0 Quat) r3.Vec { return q0.Inverse().Mul(q).Log() }

// Roll returns the ZYX roll angle.
func (q Quat) Roll() float64 {
	return math.Atan2(2*(q.Real*q.Imag+q.Jmag*q.Kmag), 1-2*(q.Imag*q.Imag+q.Jmag*q.Jmag))
}

// Pitch returns the ZYX pitch angle.
func (q Quat) Pitch() float64 {
	s := 2 * (q.Real*q.Jmag - q.Kmag*q.Imag)
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return math.Asin(s)
}

// Yaw returns the ZYX yaw angle.
func (q Quat) Yaw() float64 {
	return math.Atan2(2*(q.Real*q.Kmag+q.Imag*q.Jmag), 1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}

// Matrix returns the 3×3 rotation matrix R with R·v == q.Rota(v).
func (q Quat) Matrix() *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// Array returns the components in (w, x, y, z) order.
func (q Quat) Array() [4]float64 { return [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag} }
