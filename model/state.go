package model

import "gonum.org/v1/gonum/spatial/r3"

// StateSize is the length of State.Array.
const StateSize = 13

// ErrorStateSize is the dimension of the tangent space.
const ErrorStateSize = 12

// State is the true vehicle state. P is the position in the local NED frame,
// Q the body-to-NED attitude, V the body-frame velocity and W the body-frame
// angular rate.
type State struct {
	P r3.Vec
	Q Quat
	V r3.Vec
	W r3.Vec
}

// NewState returns a state at rest at the origin.
func NewState() State { return State{Q: IdentityQuat()} }

// Pose returns the body-to-NED transform.
func (x State) Pose() Xform { return Xform{T: x.P, Q: x.Q} }

// Array flattens x as (p, q(w,x,y,z), v, w).
func (x State) Array() [StateSize]float64 {
	return [StateSize]float64{
		x.P.X, x.P.Y, x.P.Z,
		x.Q.Real, x.Q.Imag, x.Q.Jmag, x.Q.Kmag,
		x.V.X, x.V.Y, x.V.Z,
		x.W.X, x.W.Y, x.W.Z,
	}
}

// StateFromArray is the inverse of State.Array.
func StateFromArray(a [StateSize]float64) State {
	return State{
		P: r3.Vec{X: a[0], Y: a[1], Z: a[2]},
		Q: Quat{Real: a[3], Imag: a[4], Jmag: a[5], Kmag: a[6]},
		V: r3.Vec{X: a[7], Y: a[8], Z: a[9]},
		W: r3.Vec{X: a[10], Y: a[11], Z: a[12]},
	}
}

// ErrorState is a perturbation in the tangent space of State: position,
// rotation vector, velocity and angular rate.
type ErrorState struct {
	P r3.Vec
	Q r3.Vec
	V r3.Vec
	W r3.Vec
}

// Scale returns d scaled by s.
func (d ErrorState) Scale(s float64) ErrorState {
	return ErrorState{
		P: r3.Scale(s, d.P),
		Q: r3.Scale(s, d.Q),
		V: r3.Scale(s, d.V),
		W: r3.Scale(s, d.W),
	}
}

// Add returns the component-wise sum d + e.
func (d ErrorState) Add(e ErrorState) ErrorState {
	return ErrorState{
		P: r3.Add(d.P, e.P),
		Q: r3.Add(d.Q, e.Q),
		V: r3.Add(d.V, e.V),
		W: r3.Add(d.W, e.W),
	}
}

// Array flattens d as (p, q, v, w).
func (d ErrorState) Array() [ErrorStateSize]float64 {
	return [ErrorStateSize]float64{
		d.P.X, d.P.Y, d.P.Z,
		d.Q.X, d.Q.Y, d.Q.Z,
		d.V.X, d.V.Y, d.V.Z,
		d.W.X, d.W.Y, d.W.Z,
	}
}

// Retract applies the perturbation d to x (x ⊕ d). Attitude is perturbed on
// the right, so d.Q is expressed in the body frame. Retract(x, ErrorState{})
// returns x unchanged.
func Retract(x State, d ErrorState) State {
	return State{
		P: r3.Add(x.P, d.P),
		Q: x.Q.BoxPlus(d.Q),
		V: r3.Add(x.V, d.V),
		W: r3.Add(x.W, d.W),
	}
}

// LocalDifference returns the perturbation d with Retract(x0, d) == x1
// (x1 ⊖ x0).
func LocalDifference(x1, x0 State) ErrorState {
	return ErrorState{
		P: r3.Sub(x1.P, x0.P),
		Q: x1.Q.BoxMinus(x0.Q),
		V: r3.Sub(x1.V, x0.V),
		W: r3.Sub(x1.W, x0.W),
	}
}

// Input is the commanded control: normalized thrust in [0, 1] and body torque.
type Input struct {
	Thrust float64
	Tau    r3.Vec
}

// IMU is one specific-force and angular-rate sample in the IMU frame.
type IMU struct {
	Accel r3.Vec
	Gyro  r3.Vec
}
