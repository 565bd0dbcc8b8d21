package config

import "errors"

// Validation errors returned by Config.Validate, wrapped with the offending
// value.
var (
	ErrInvalidStep        = errors.New("time step must be positive")
	ErrInvalidHorizon     = errors.New("tmax must be at least one time step")
	ErrInvalidRate        = errors.New("update rate must be positive for an enabled sensor")
	ErrInvalidMass        = errors.New("mass and max thrust must be positive")
	ErrInvalidInertia     = errors.New("inertia diagonal must be positive")
	ErrInvalidStdev       = errors.New("standard deviation must be non-negative")
	ErrInvalidCamera      = errors.New("camera intrinsics must be positive")
	ErrInvalidQuaternion  = errors.New("quaternion must have non-zero norm")
	ErrUnknownPathType    = errors.New("unknown path type")
	ErrUnknownControlType = errors.New("unknown control type")
	ErrInvalidLQRWeights  = errors.New("lqr state weights must be non-negative and input weights positive")
	ErrNoWaypoints        = errors.New("waypoint path requires at least one waypoint")
	ErrNoSatellites       = errors.New("raw GNSS requires an ephemeris file or TLE satellites")
	ErrUnsupportedFormat  = errors.New("unsupported file extension")
)
