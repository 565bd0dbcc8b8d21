package core

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/model"
)

// Landmark is an environment point and its id.
type Landmark struct {
	ID       int
	Position r3.Vec
}

// Environment is the landmark field observed by the camera. Positions are
// in the local NED frame.
type Environment interface {
	// Points returns every landmark position indexed by id.
	Points() []r3.Vec
	// Point returns the landmark with the given id.
	Point(id int) (r3.Vec, bool)
	// AddPoint creates a landmark where the ray from the camera along bearing
	// (camera frame) meets the environment. It reports false when the ray
	// hits nothing.
	AddPoint(camera model.Xform, bearing r3.Vec) (int, bool)
	// NearestPoints returns up to k landmarks within maxRadius of pt,
	// nearest first.
	NearestPoints(pt r3.Vec, k int, maxRadius float64) []Landmark
	// Floor is the NED depth of the ground plane.
	Floor() float64
}
