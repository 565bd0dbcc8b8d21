package control

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/model"
)

// Waypoint is a commanded position (NED) and heading.
type Waypoint struct {
	P   r3.Vec
	Yaw float64
}

func waypointsFromConfig(wps [][4]float64) []Waypoint {
	out := make([]Waypoint, len(wps))
	for i, w := range wps {
		out[i] = Waypoint{P: r3.Vec{X: w[0], Y: w[1], Z: w[2]}, Yaw: w[3]}
	}
	return out
}

// RandomWaypoints lays out cfg.NumRandomWaypoints waypoints starting from
// start. Each step follows the previous waypoint's heading for a random
// distance, and the heading and altitude wander uniformly. u draws from
// [-1, 1).
func RandomWaypoints(cfg config.TrajectoryConfig, start r3.Vec, u distuv.Uniform) []Waypoint {
	out := make([]Waypoint, cfg.NumRandomWaypoints)
	prev := Waypoint{P: start}
	for i := range out {
		step := cfg.WaypointSeparation + cfg.WaypointSepVariance*(u.Rand()+1)/2
		out[i] = Waypoint{
			P: r3.Vec{
				X: prev.P.X + step*math.Cos(prev.Yaw),
				Y: prev.P.Y + step*math.Sin(prev.Yaw),
				Z: -(cfg.Altitude + cfg.AltitudeVariance*u.Rand()),
			},
			Yaw: prev.Yaw + cfg.HeadingWalk*u.Rand(),
		}
		prev = out[i]
	}
	return out
}

// Sinusoid returns the commanded position and heading of the sinusoidal
// path at time t.
func Sinusoid(cfg config.TrajectoryConfig, t float64) Waypoint {
	phase := func(i int) float64 { return 2 * math.Pi / cfg.Period[i] * t }
	return Waypoint{
		P: r3.Vec{
			X: cfg.Nominal[0] + cfg.Delta[0]/2*math.Cos(phase(0)),
			Y: cfg.Nominal[1] + cfg.Delta[1]/2*math.Sin(phase(1)),
			Z: -(cfg.Nominal[2] + cfg.Delta[2]/2*math.Sin(phase(2))),
		},
		Yaw: cfg.Nominal[3] + cfg.Delta[3]/2*math.Sin(phase(3)),
	}
}

// State returns the level commanded state at the waypoint.
func (w Waypoint) State() model.State {
	x := model.NewState()
	x.P = w.P
	x.Q = model.FromEuler(0, 0, w.Yaw)
	return x
}

// wrapAngle folds a into [-π, π].
func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
