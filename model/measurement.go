package model

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Feature is a landmark currently tracked by the camera.
type Feature struct {
	ID    int    // landmark id owned by the environment
	Zeta  r3.Vec // unit bearing in the camera frame
	Pixel r2.Vec
	Depth float64
}

// Image is one batch of feature observations delivered to estimators.
type Image struct {
	ID         int
	T          float64 // capture time
	Pixels     []r2.Vec
	FeatureIDs []int
	Depths     []float64
}

// Len reports the number of observations in the image.
func (img Image) Len() int { return len(img.FeatureIDs) }

// GNSSFix is an abstracted receiver solution in ECEF.
type GNSSFix struct {
	Pos r3.Vec
	Vel r3.Vec
}

// RawObservation is one satellite's code, Doppler and carrier observation.
type RawObservation struct {
	Pseudorange     float64 // m
	PseudorangeRate float64 // m/s
	CarrierPhase    float64 // cycles
}
