package core

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/model"
)

// Gravity is standard gravity (m/s²).
const Gravity = 9.80665

var (
	gravityNED = r3.Vec{Z: Gravity}
	ez         = r3.Vec{Z: 1}
)

// Dynamics integrates the rigid-body multirotor model and synthesizes the
// IMU output consistent with each step.
type Dynamics struct {
	mass      float64
	maxThrust float64
	drag      float64
	angDrag   float64
	inertia   r3.Vec // diagonal
	rk4       bool

	pBU r3.Vec
	qBU model.Quat

	windEnabled bool
	windWalk    float64
	wind        r3.Vec // NED

	x     model.State
	imu   model.IMU
	noise *noiseStream
}

// NewDynamics builds the vehicle model from cfg, starting at cfg.X0. The
// wind walk draws from its own stream seeded by seed.
func NewDynamics(cfg *config.Config, seed int64) *Dynamics {
	d := &Dynamics{
		mass:        cfg.Dynamics.Mass,
		maxThrust:   cfg.Dynamics.MaxThrust,
		drag:        cfg.Dynamics.DragConstant,
		angDrag:     cfg.Dynamics.AngularDrag,
		inertia:     config.Vec3(cfg.Dynamics.Inertia),
		rk4:         cfg.Dynamics.RK4,
		pBU:         config.Vec3(cfg.IMU.PBU),
		qBU:         config.Quat(cfg.IMU.QBU),
		windEnabled: cfg.Dynamics.WindEnabled,
		windWalk:    cfg.Dynamics.WindWalkStdev,
		x:           cfg.X0.State(),
		noise:       newNoiseStream(seed, streamDynamics),
	}
	if d.windEnabled {
		d.wind = d.noise.UniformVec(cfg.Dynamics.WindInitStdev)
	}
	return d
}

// State returns the current true state.
func (d *Dynamics) State() model.State { return d.x }

// IMU returns the specific force and angular rate of the last step.
func (d *Dynamics) IMU() model.IMU { return d.imu }

// Wind returns the current NED wind velocity.
func (d *Dynamics) Wind() r3.Vec { return d.wind }

// HoverThrottle is the normalized thrust that balances gravity.
func (d *Dynamics) HoverThrottle() float64 { return d.mass / d.maxThrust * Gravity }

// Derivative evaluates the equations of motion at x under u.
func (d *Dynamics) Derivative(x model.State, u model.Input) model.ErrorState {
	vRel := r3.Sub(x.V, x.Q.Rotp(d.wind))
	jw := r3.Vec{X: d.inertia.X * x.W.X, Y: d.inertia.Y * x.W.Y, Z: d.inertia.Z * x.W.Z}
	tau := r3.Sub(r3.Sub(u.Tau, r3.Cross(x.W, jw)),
		r3.Scale(d.angDrag, r3.Vec{X: x.W.X * x.W.X, Y: x.W.Y * x.W.Y, Z: x.W.Z * x.W.Z}))

	dv := r3.Scale(-u.Thrust*d.maxThrust/d.mass, ez)
	dv = r3.Sub(dv, r3.Scale(d.drag, vRel))
	dv = r3.Add(dv, x.Q.Rotp(gravityNED))
	dv = r3.Sub(dv, r3.Cross(x.W, x.V))

	return model.ErrorState{
		P: x.Q.Rota(x.V),
		Q: x.W,
		V: dv,
		W: r3.Vec{X: tau.X / d.inertia.X, Y: tau.Y / d.inertia.Y, Z: tau.Z / d.inertia.Z},
	}
}

// imuAt synthesizes the IMU output at x given its derivative dx, including
// the lever-arm terms of the IMU mount.
func (d *Dynamics) imuAt(x model.State, dx model.ErrorState) model.IMU {
	a := r3.Add(dx.V, r3.Cross(x.W, x.V))
	a = r3.Add(a, r3.Cross(x.W, r3.Cross(x.W, d.pBU)))
	a = r3.Add(a, r3.Cross(dx.W, d.pBU))
	a = r3.Sub(a, x.Q.Rotp(gravityNED))
	return model.IMU{
		Accel: d.qBU.Rotp(a),
		Gyro:  d.qBU.Rotp(x.W),
	}
}

// Step advances the state by dt under u and returns the new state and the
// IMU sample. Under RK4 the IMU is synthesized from the first stage only. A
// non-positive dt leaves the state unchanged.
func (d *Dynamics) Step(u model.Input, dt float64) (model.State, model.IMU) {
	if dt <= 0 {
		return d.x, d.imu
	}

	k1 := d.Derivative(d.x, u)
	d.imu = d.imuAt(d.x, k1)

	var dx model.ErrorState
	if d.rk4 {
		k2 := d.Derivative(model.Retract(d.x, k1.Scale(dt/2)), u)
		k3 := d.Derivative(model.Retract(d.x, k2.Scale(dt/2)), u)
		k4 := d.Derivative(model.Retract(d.x, k3.Scale(dt)), u)
		dx = k1.Add(k2.Scale(2)).Add(k3.Scale(2)).Add(k4).Scale(dt / 6)
	} else {
		dx = k1.Scale(dt)
	}

	d.x = model.Retract(d.x, dx)
	d.x.Q = d.x.Q.Normalized()

	if d.windEnabled {
		d.wind = r3.Add(d.wind, r3.Scale(dt, d.noise.NormalVec(d.windWalk)))
	}
	return d.x, d.imu
}
