package core

import (
	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/multirotor-sim/model"
	"github.com/signalsfoundry/multirotor-sim/timectrl"
)

// Estimator consumes synthesized measurements. Calls are synchronous and
// must not re-enter the Simulator. Covariances are shared between calls and
// must not be modified.
type Estimator interface {
	OnIMU(t float64, z model.IMU, R mat.Symmetric)
	// OnImage receives one camera frame; t is its capture time.
	OnImage(t float64, img model.Image, pixelR, depthR mat.Symmetric)
	OnAltitude(t float64, z float64, R mat.Symmetric)
	// OnMocap receives a pose sampled at t, delivered after its transmission
	// delay.
	OnMocap(t float64, z model.Xform, R mat.Symmetric)
	OnVisualOdometry(t float64, z model.Xform, R mat.Symmetric)
	OnGNSS(t float64, z model.GNSSFix, R mat.Symmetric)
	OnRawGNSS(t timectrl.GTime, z model.RawObservation, R mat.Symmetric, sat *Satellite)
}

// NopEstimator ignores every measurement. Embed it to implement a subset of
// Estimator.
type NopEstimator struct{}

func (NopEstimator) OnIMU(float64, model.IMU, mat.Symmetric)                                   {}
func (NopEstimator) OnImage(float64, model.Image, mat.Symmetric, mat.Symmetric)                {}
func (NopEstimator) OnAltitude(float64, float64, mat.Symmetric)                                {}
func (NopEstimator) OnMocap(float64, model.Xform, mat.Symmetric)                               {}
func (NopEstimator) OnVisualOdometry(float64, model.Xform, mat.Symmetric)                      {}
func (NopEstimator) OnGNSS(float64, model.GNSSFix, mat.Symmetric)                              {}
func (NopEstimator) OnRawGNSS(timectrl.GTime, model.RawObservation, mat.Symmetric, *Satellite) {}

// Controller computes the control input driving the vehicle toward the
// commanded state.
type Controller interface {
	ComputeControl(t float64, x, xc model.State, ur model.Input) model.Input
}

// Trajectory supplies the commanded state and reference input.
type Trajectory interface {
	CommandedState(t float64) (model.State, model.Input)
}
