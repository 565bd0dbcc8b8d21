// Package control provides the reference trajectory and the multirotor
// controllers used to fly the simulated vehicle: a nonlinear cascade and an
// LQR outer loop sharing the same attitude loops.
package control

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/multirotor-sim/core"
	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/internal/logging"
	"github.com/signalsfoundry/multirotor-sim/model"
)

// controlStream is the noise stream index reserved for the reference path.
const controlStream = 9

// minStep is the smallest interval the controller acts on; calls closer
// together than this return a zero input.
const minStep = 1e-7

var e3 = r3.Vec{Z: 1}

// Reference is both the trajectory generator and the vehicle controller.
// With the nonlinear cascade, position error drives a saturated velocity
// command and velocity error an acceleration command. With LQR, the
// acceleration command is state feedback on the saturated position and
// velocity errors. Either way the acceleration command is turned into
// throttle and roll/pitch targets tracked by attitude PIDs, and the hover
// throttle is estimated online.
type Reference struct {
	ctl  config.ControlConfig
	path config.TrajectoryConfig
	log  logging.Logger

	noise distuv.Uniform

	waypoints []Waypoint
	current   int
	heading   float64 // last measured heading, used by the cruise path

	prevT    float64
	prevVErr r3.Vec
	primed   bool

	roll, pitch, yawRate *PID

	// LQR translation gain; nil selects the nonlinear cascade
	lqrK *mat.Dense

	// hover throttle observer
	vhat  r3.Vec
	shInv float64
	sPrev float64
}

var (
	_ core.Controller = (*Reference)(nil)
	_ core.Trajectory = (*Reference)(nil)
)

// New builds the controller and reference path described by cfg. Random
// waypoints are drawn from a stream seeded by seed, starting at the
// configured initial position.
func New(cfg *config.Config, seed int64, log logging.Logger) (*Reference, error) {
	if log == nil {
		log = logging.Noop()
	}
	switch cfg.Control.ControlType {
	case config.ControlNonlinear, config.ControlLQR:
	default:
		return nil, fmt.Errorf("%w: %d", config.ErrUnknownControlType, cfg.Control.ControlType)
	}
	if cfg.Control.ThrottleEq <= 0 {
		return nil, fmt.Errorf("control: throttle_eq must be positive, got %v", cfg.Control.ThrottleEq)
	}

	r := &Reference{
		ctl:  cfg.Control,
		path: cfg.Trajectory,
		log:  log,
		noise: distuv.Uniform{
			Min: -1,
			Max: 1,
			Src: rand.NewPCG(uint64(seed), controlStream),
		},
		roll:    NewPID(cfg.Control.Roll),
		pitch:   NewPID(cfg.Control.Pitch),
		yawRate: NewPID(cfg.Control.YawRate),
		shInv:   1 / cfg.Control.ThrottleEq,
		sPrev:   cfg.Control.ThrottleEq,
		heading: cfg.X0.State().Q.Yaw(),
	}

	switch cfg.Trajectory.PathType {
	case config.PathWaypoints:
		if len(cfg.Trajectory.Waypoints) == 0 {
			return nil, config.ErrNoWaypoints
		}
		r.waypoints = waypointsFromConfig(cfg.Trajectory.Waypoints)
	case config.PathRandomWaypoints:
		if cfg.Trajectory.NumRandomWaypoints <= 0 {
			return nil, fmt.Errorf("%w: num_random_waypoints = %d", config.ErrNoWaypoints, cfg.Trajectory.NumRandomWaypoints)
		}
		r.waypoints = RandomWaypoints(cfg.Trajectory, config.Vec3(cfg.X0.Position), r.noise)
	case config.PathSinusoid, config.PathConstantVelocity:
	default:
		return nil, fmt.Errorf("%w: %d", config.ErrUnknownPathType, cfg.Trajectory.PathType)
	}

	if cfg.Control.ControlType == config.ControlLQR {
		k, err := translationGain(cfg.Control)
		if err != nil {
			return nil, fmt.Errorf("control: %w", err)
		}
		r.lqrK = k
		log.Debug(context.Background(), "lqr gain computed",
			logging.Float("kp_north", k.At(0, 0)),
			logging.Float("kv_north", k.At(0, 3)),
		)
	}
	return r, nil
}

// Waypoints returns the waypoint list, or nil for continuous paths.
func (r *Reference) Waypoints() []Waypoint {
	return append([]Waypoint(nil), r.waypoints...)
}

// CurrentWaypoint returns the index of the active waypoint.
func (r *Reference) CurrentWaypoint() int { return r.current }

// HoverThrottle returns the current hover throttle estimate.
func (r *Reference) HoverThrottle() float64 { return 1 / r.shInv }

// CommandedState returns the commanded state at t and the reference input,
// which is the estimated hover throttle with zero torque.
func (r *Reference) CommandedState(t float64) (model.State, model.Input) {
	ur := model.Input{Thrust: r.HoverThrottle()}
	switch r.path.PathType {
	case config.PathSinusoid:
		return Sinusoid(r.path, t).State(), ur
	case config.PathConstantVelocity:
		xc := Waypoint{P: r3.Vec{Z: -r.path.CruiseAltitude}, Yaw: r.heading}.State()
		xc.V = r3.Vec{X: r.path.VelocityMagnitude}
		return xc, ur
	default:
		return r.waypoints[r.current].State(), ur
	}
}

// ComputeControl returns the input driving x toward xc. Calls less than
// 1e-7 s after the previous one return a zero input.
func (r *Reference) ComputeControl(t float64, x, xc model.State, _ model.Input) model.Input {
	dt := t - r.prevT
	r.prevT = t
	if dt < minStep {
		return model.Input{}
	}

	roll, pitch, yaw := x.Q.Roll(), x.Q.Pitch(), x.Q.Yaw()
	r.heading = yaw
	vI := x.Q.Rota(x.V)

	// acceleration and yaw rate commands
	var ac r3.Vec
	var rc float64
	if r.lqrK != nil {
		ac, rc = r.lqrCommand(x, xc, vI, yaw)
	} else {
		ac, rc = r.cascadeCommand(dt, x, xc, vI, yaw)
	}
	if r.ctl.MaxYawRate > 0 {
		rc = saturate(rc, r.ctl.MaxYawRate)
	}

	r.observeHoverThrottle(dt, x)

	// thrust vector in the yaw-aligned frame
	f := r3.Sub(ac, r3.Scale(core.Gravity, e3))
	fv1 := model.FromEuler(0, 0, yaw).Rotp(f)
	fn := r3.Norm(f)

	throttle := math.Max(0, math.Min(r.ctl.MaxThrottle, fn/(core.Gravity*r.shInv)))
	var phic, thetac float64
	if fn > 0 {
		phic = math.Asin(math.Max(-1, math.Min(1, fv1.Y/fn)))
		thetac = math.Atan2(-fv1.X, -fv1.Z)
	}
	if r.ctl.MaxRoll > 0 {
		phic = saturate(phic, r.ctl.MaxRoll)
	}
	if r.ctl.MaxPitch > 0 {
		thetac = saturate(thetac, r.ctl.MaxPitch)
	}
	r.sPrev = throttle

	u := model.Input{
		Thrust: throttle,
		Tau: r3.Vec{
			X: r.roll.RunWithRate(dt, roll, phic, x.W.X),
			Y: r.pitch.RunWithRate(dt, pitch, thetac, x.W.Y),
			Z: r.yawRate.RunWithRate(dt, x.W.Z, rc, 0),
		},
	}

	r.advanceWaypoint(t, x, xc)
	return u
}

// cascadeCommand runs the nonlinear position and velocity loops.
func (r *Reference) cascadeCommand(dt float64, x, xc model.State, vI r3.Vec, yaw float64) (r3.Vec, float64) {
	var vc r3.Vec
	var rc float64
	if r.path.PathType == config.PathConstantVelocity {
		vc = model.FromEuler(0, 0, xc.Q.Yaw()).Rota(xc.V)
		vc.Z = r.ctl.Kp[2] * (xc.P.Z - x.P.Z)
		rc = r.cruiseYawRate(x)
	} else {
		vc = clampNorm(mulElem(r.ctl.Kp, r3.Sub(xc.P, x.P)), r.ctl.MaxVel)
		rc = r.ctl.HeadingGain * wrapAngle(xc.Q.Yaw()-yaw)
	}

	verr := r3.Sub(vc, vI)
	var dverr r3.Vec
	if r.primed {
		dverr = r3.Scale(1/dt, r3.Sub(verr, r.prevVErr))
	}
	r.prevVErr, r.primed = verr, true
	return r3.Add(mulElem(r.ctl.Kv, verr), mulElem(r.ctl.Kd, dverr)), rc
}

// lqrCommand applies the LQR gain to the saturated position and velocity
// errors. The yaw loop is a single integrator with unit error weight, so its
// gain is 1/sqrt(lqr_r[3]). On the cruise path only altitude is held.
func (r *Reference) lqrCommand(x, xc model.State, vI r3.Vec, yaw float64) (r3.Vec, float64) {
	var ep, vref r3.Vec
	var rc float64
	if r.path.PathType == config.PathConstantVelocity {
		ep.Z = x.P.Z - xc.P.Z
		vref = model.FromEuler(0, 0, xc.Q.Yaw()).Rota(xc.V)
		rc = r.cruiseYawRate(x)
	} else {
		ep = r3.Sub(x.P, xc.P)
		vref = xc.Q.Rota(xc.V)
		yerr := wrapAngle(xc.Q.Yaw() - yaw)
		if r.ctl.LQRMaxYawError > 0 {
			yerr = saturate(yerr, r.ctl.LQRMaxYawError)
		}
		rc = yerr / math.Sqrt(r.ctl.LQRR[3])
	}
	ep = clampNorm(ep, r.ctl.LQRMaxPosError)
	ev := clampNorm(r3.Sub(vI, vref), r.ctl.LQRMaxVelError)
	return applyGain(r.lqrK, ep, ev), rc
}

// cruiseYawRate is a random heading walk damped toward straight flight.
func (r *Reference) cruiseYawRate(x model.State) float64 {
	return r.path.CruiseHeadingWalk*r.noise.Rand() - r.path.HeadingStraightGain*x.W.Z
}

// observeHoverThrottle updates the hover throttle estimate from the
// mismatch between the measured and predicted body velocity.
func (r *Reference) observeHoverThrottle(dt float64, x model.State) {
	g := core.Gravity
	verr := r3.Sub(x.V, r.vhat)

	vhatDot := r3.Scale(g, r3.Sub(x.Q.Rotp(e3), r3.Scale(r.shInv*r.sPrev, e3)))
	vhatDot = r3.Sub(vhatDot, r3.Cross(x.W, r.vhat))
	vhatDot = r3.Add(vhatDot, r3.Scale(r.ctl.ShKv, verr))
	shInvDot := -r.ctl.ShKs * g * r.sPrev * verr.Z

	r.vhat = r3.Add(r.vhat, r3.Scale(dt, vhatDot))
	// a hover throttle above full scale cannot hold the vehicle up
	r.shInv = math.Max(1, r.shInv+dt*shInvDot)
}

// advanceWaypoint moves to the next waypoint, wrapping around, once the
// vehicle is within the position threshold of the active one and slower
// than the velocity threshold.
func (r *Reference) advanceWaypoint(t float64, x, xc model.State) {
	if len(r.waypoints) == 0 {
		return
	}
	perr := r3.Sub(xc.P, x.P)
	yerr := wrapAngle(xc.Q.Yaw() - x.Q.Yaw())
	errNorm := math.Sqrt(r3.Dot(perr, perr) + yerr*yerr)
	if errNorm >= r.ctl.WaypointThreshold || r3.Norm(x.V) >= r.ctl.WaypointVelocityThreshold {
		return
	}

	r.current = (r.current + 1) % len(r.waypoints)
	r.log.Debug(context.Background(), "waypoint reached",
		logging.Any("t", t),
		logging.Int("next", r.current),
	)
}

func mulElem(k [3]float64, v r3.Vec) r3.Vec {
	return r3.Vec{X: k[0] * v.X, Y: k[1] * v.Y, Z: k[2] * v.Z}
}
