// Package config loads simulator configuration files.
package config

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/model"
)

// Config is the full simulator configuration.
type Config struct {
	Sim         SimConfig         `json:"sim" yaml:"sim"`
	Dynamics    DynamicsConfig    `json:"dynamics" yaml:"dynamics"`
	X0          InitialState      `json:"x0" yaml:"x0"`
	IMU         IMUConfig         `json:"imu" yaml:"imu"`
	Camera      CameraConfig      `json:"camera" yaml:"camera"`
	Altimeter   AltimeterConfig   `json:"altimeter" yaml:"altimeter"`
	Mocap       MocapConfig       `json:"mocap" yaml:"mocap"`
	VO          VOConfig          `json:"vo" yaml:"vo"`
	GNSS        GNSSConfig        `json:"gnss" yaml:"gnss"`
	RawGNSS     RawGNSSConfig     `json:"raw_gnss" yaml:"raw_gnss"`
	Environment EnvironmentConfig `json:"environment" yaml:"environment"`
	Control     ControlConfig     `json:"control" yaml:"control"`
	Trajectory  TrajectoryConfig  `json:"trajectory" yaml:"trajectory"`
}

// SimConfig holds the run loop parameters.
type SimConfig struct {
	TMax float64 `json:"tmax" yaml:"tmax"`
	Dt   float64 `json:"dt" yaml:"dt"`
	// Seed for every noise stream. A negative seed is replaced by the wall
	// clock at startup.
	Seed        int64  `json:"seed" yaml:"seed"`
	LogFilename string `json:"log_filename" yaml:"log_filename"`
	RealTime    bool   `json:"real_time" yaml:"real_time"`
}

// DynamicsConfig describes the vehicle.
type DynamicsConfig struct {
	Mass         float64    `json:"mass" yaml:"mass"`
	MaxThrust    float64    `json:"max_thrust" yaml:"max_thrust"`
	DragConstant float64    `json:"drag_constant" yaml:"drag_constant"`
	AngularDrag  float64    `json:"angular_drag_constant" yaml:"angular_drag_constant"`
	Inertia      [3]float64 `json:"inertia" yaml:"inertia"`
	RK4          bool       `json:"rk4" yaml:"rk4"`

	WindEnabled   bool    `json:"enable_wind" yaml:"enable_wind"`
	WindInitStdev float64 `json:"wind_init_stdev" yaml:"wind_init_stdev"`
	WindWalkStdev float64 `json:"wind_walk_stdev" yaml:"wind_walk_stdev"`
}

// InitialState is the vehicle state at t = 0. Attitude is (w, x, y, z).
type InitialState struct {
	Position [3]float64 `json:"position" yaml:"position"`
	Attitude [4]float64 `json:"attitude" yaml:"attitude"`
	Velocity [3]float64 `json:"velocity" yaml:"velocity"`
	Omega    [3]float64 `json:"omega" yaml:"omega"`
}

// IMUConfig configures the accelerometer and gyro channel. The mount pose
// (PBU, QBU) is shared with the dynamics for specific-force synthesis.
type IMUConfig struct {
	Enabled    bool       `json:"enabled" yaml:"enabled"`
	UpdateRate float64    `json:"update_rate" yaml:"update_rate"`
	PBU        [3]float64 `json:"p_b_u" yaml:"p_b_u"`
	QBU        [4]float64 `json:"q_b_u" yaml:"q_b_u"`

	UseAccelTruth   bool    `json:"use_accel_truth" yaml:"use_accel_truth"`
	AccelNoiseStdev float64 `json:"accel_noise_stdev" yaml:"accel_noise_stdev"`
	AccelInitStdev  float64 `json:"accel_init_stdev" yaml:"accel_init_stdev"`
	AccelBiasWalk   float64 `json:"accel_bias_walk" yaml:"accel_bias_walk"`

	UseGyroTruth   bool    `json:"use_gyro_truth" yaml:"use_gyro_truth"`
	GyroNoiseStdev float64 `json:"gyro_noise_stdev" yaml:"gyro_noise_stdev"`
	GyroInitStdev  float64 `json:"gyro_init_stdev" yaml:"gyro_init_stdev"`
	GyroBiasWalk   float64 `json:"gyro_bias_walk" yaml:"gyro_bias_walk"`
}

// CameraConfig configures the feature-tracking camera.
type CameraConfig struct {
	Enabled     bool       `json:"enabled" yaml:"enabled"`
	UpdateRate  float64    `json:"update_rate" yaml:"update_rate"`
	TimeDelay   float64    `json:"time_delay" yaml:"time_delay"`
	UseTruth    bool       `json:"use_truth" yaml:"use_truth"`
	Center      [2]float64 `json:"cam_center" yaml:"cam_center"`
	ImageSize   [2]float64 `json:"image_size" yaml:"image_size"`
	FocalLen    [2]float64 `json:"focal_len" yaml:"focal_len"`
	PBC         [3]float64 `json:"p_b_c" yaml:"p_b_c"`
	QBC         [4]float64 `json:"q_b_c" yaml:"q_b_c"`
	PixelStdev  float64    `json:"pixel_noise_stdev" yaml:"pixel_noise_stdev"`
	NumFeatures int        `json:"num_features" yaml:"num_features"`
	LoopClosure bool       `json:"loop_closure" yaml:"loop_closure"`

	UseDepthTruth bool    `json:"use_depth_truth" yaml:"use_depth_truth"`
	DepthStdev    float64 `json:"depth_noise_stdev" yaml:"depth_noise_stdev"`
}

// AltimeterConfig configures the altimeter channel.
type AltimeterConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	UpdateRate float64 `json:"update_rate" yaml:"update_rate"`
	UseTruth   bool    `json:"use_truth" yaml:"use_truth"`
	NoiseStdev float64 `json:"noise_stdev" yaml:"noise_stdev"`
}

// MocapConfig configures the motion-capture channel.
type MocapConfig struct {
	Enabled            bool       `json:"enabled" yaml:"enabled"`
	UpdateRate         float64    `json:"update_rate" yaml:"update_rate"`
	UseTruth           bool       `json:"use_truth" yaml:"use_truth"`
	PositionStdev      float64    `json:"position_noise_stdev" yaml:"position_noise_stdev"`
	AttitudeStdev      float64    `json:"attitude_noise_stdev" yaml:"attitude_noise_stdev"`
	TimeOffset         float64    `json:"time_offset" yaml:"time_offset"`
	TransmissionTime   float64    `json:"transmission_time" yaml:"transmission_time"`
	TransmissionStdev  float64    `json:"transmission_noise" yaml:"transmission_noise"`
	PBM                [3]float64 `json:"p_b_m" yaml:"p_b_m"`
	QBM                [4]float64 `json:"q_b_m" yaml:"q_b_m"`
}

// VOConfig configures the visual-odometry channel. Keyframes are taken when
// the vehicle has moved DeltaPosition metres or rotated DeltaAttitude
// radians since the last one.
type VOConfig struct {
	Enabled          bool    `json:"enabled" yaml:"enabled"`
	UseTruth         bool    `json:"use_truth" yaml:"use_truth"`
	DeltaPosition    float64 `json:"delta_position" yaml:"delta_position"`
	DeltaAttitude    float64 `json:"delta_attitude" yaml:"delta_attitude"`
	TranslationStdev float64 `json:"translation_noise_stdev" yaml:"translation_noise_stdev"`
	RotationStdev    float64 `json:"rotation_noise_stdev" yaml:"rotation_noise_stdev"`
}

// GNSSConfig configures the position/velocity fix channel. RefLLA anchors
// the local NED frame: latitude and longitude in degrees, height in metres.
type GNSSConfig struct {
	Enabled         bool       `json:"enabled" yaml:"enabled"`
	UpdateRate      float64    `json:"update_rate" yaml:"update_rate"`
	UseTruth        bool       `json:"use_truth" yaml:"use_truth"`
	RefLLA          [3]float64 `json:"ref_lla" yaml:"ref_lla"`
	HorizontalStdev float64    `json:"horizontal_position_stdev" yaml:"horizontal_position_stdev"`
	VerticalStdev   float64    `json:"vertical_position_stdev" yaml:"vertical_position_stdev"`
	VelocityStdev   float64    `json:"velocity_stdev" yaml:"velocity_stdev"`
}

// RawGNSSConfig configures pseudorange, Doppler and carrier-phase
// synthesis. A zero UpdateRate uses the GNSS channel's rate.
type RawGNSSConfig struct {
	Enabled              bool    `json:"enabled" yaml:"enabled"`
	UpdateRate           float64 `json:"update_rate" yaml:"update_rate"`
	UseTruth             bool    `json:"use_truth" yaml:"use_truth"`
	PseudorangeStdev     float64 `json:"pseudorange_stdev" yaml:"pseudorange_stdev"`
	PseudorangeRateStdev float64 `json:"pseudorange_rate_stdev" yaml:"pseudorange_rate_stdev"`
	CarrierPhaseStdev    float64 `json:"carrier_phase_stdev" yaml:"carrier_phase_stdev"`
	ClockInitStdev       float64 `json:"clock_init_stdev" yaml:"clock_init_stdev"`
	ClockWalkStdev       float64 `json:"clock_walk_stdev" yaml:"clock_walk_stdev"`
	StartWeek            int64   `json:"start_time_week" yaml:"start_time_week"`
	StartTowSec          float64 `json:"start_time_tow_sec" yaml:"start_time_tow_sec"`
	// ElevationMask in radians; satellites at or below it are not observed.
	ElevationMask float64     `json:"elevation_mask" yaml:"elevation_mask"`
	EphemerisFile string      `json:"ephemeris_file" yaml:"ephemeris_file"`
	TLE           []TLEConfig `json:"tle" yaml:"tle"`
	Iono          *IonoConfig `json:"iono,omitempty" yaml:"iono,omitempty"`
}

// TLEConfig is one SGP4-propagated satellite.
type TLEConfig struct {
	ID    int    `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Line1 string `json:"line1" yaml:"line1"`
	Line2 string `json:"line2" yaml:"line2"`
}

// IonoConfig overrides the default Klobuchar coefficients.
type IonoConfig struct {
	Alpha [4]float64 `json:"alpha" yaml:"alpha"`
	Beta  [4]float64 `json:"beta" yaml:"beta"`
}

// EnvironmentConfig describes the landmark field. Landmarks lie on a ground
// plane at NED depth Floor, perturbed uniformly by up to HeightVariation.
type EnvironmentConfig struct {
	Floor           float64 `json:"floor" yaml:"floor"`
	HeightVariation float64 `json:"height_variation" yaml:"height_variation"`
	MaxRange        float64 `json:"max_range" yaml:"max_range"`
}

// PIDGains are the gains and output limit of one attitude loop.
type PIDGains struct {
	Kp  float64 `json:"kp" yaml:"kp"`
	Ki  float64 `json:"ki" yaml:"ki"`
	Kd  float64 `json:"kd" yaml:"kd"`
	Max float64 `json:"max" yaml:"max"`
}

// ControlConfig configures the reference controller.
type ControlConfig struct {
	ControlType int        `json:"control_type" yaml:"control_type"`
	Kp          [3]float64 `json:"kp" yaml:"kp"`
	Kd          [3]float64 `json:"kd" yaml:"kd"`
	Kv          [3]float64 `json:"kv" yaml:"kv"`
	ThrottleEq  float64    `json:"throttle_eq" yaml:"throttle_eq"`
	ShKv        float64    `json:"sh_kv" yaml:"sh_kv"`
	ShKs        float64    `json:"sh_ks" yaml:"sh_ks"`

	WaypointThreshold         float64 `json:"waypoint_threshold" yaml:"waypoint_threshold"`
	WaypointVelocityThreshold float64 `json:"waypoint_velocity_threshold" yaml:"waypoint_velocity_threshold"`

	Roll    PIDGains `json:"roll" yaml:"roll"`
	Pitch   PIDGains `json:"pitch" yaml:"pitch"`
	YawRate PIDGains `json:"yaw_rate" yaml:"yaw_rate"`

	// yaw rate commanded per radian of heading error
	HeadingGain float64 `json:"heading_gain" yaml:"heading_gain"`

	MaxRoll     float64 `json:"max_roll" yaml:"max_roll"`
	MaxPitch    float64 `json:"max_pitch" yaml:"max_pitch"`
	MaxYawRate  float64 `json:"max_yaw_rate" yaml:"max_yaw_rate"`
	MaxThrottle float64 `json:"max_throttle" yaml:"max_throttle"`
	MaxVel      float64 `json:"max_vel" yaml:"max_vel"`

	// LQR outer loop: state weights on (position, velocity) error per NED
	// axis, input weights on (north, east, down) acceleration and yaw rate.
	LQRQ           [6]float64 `json:"lqr_q" yaml:"lqr_q"`
	LQRR           [4]float64 `json:"lqr_r" yaml:"lqr_r"`
	LQRMaxPosError float64    `json:"lqr_max_pos_error" yaml:"lqr_max_pos_error"`
	LQRMaxVelError float64    `json:"lqr_max_vel_error" yaml:"lqr_max_vel_error"`
	LQRMaxYawError float64    `json:"lqr_max_yaw_error" yaml:"lqr_max_yaw_error"`
}

// Path types.
const (
	PathWaypoints = iota
	PathRandomWaypoints
	PathSinusoid
	PathConstantVelocity
)

// Control types.
const (
	ControlNonlinear = 0
	ControlLQR       = 1
)

// TrajectoryConfig selects and parameterizes the reference path. Waypoints
// are (north, east, down, yaw).
type TrajectoryConfig struct {
	PathType  int          `json:"path_type" yaml:"path_type"`
	Waypoints [][4]float64 `json:"waypoints" yaml:"waypoints"`

	// random waypoints; altitudes here and below are heights above the
	// origin, positive up
	HeadingWalk         float64 `json:"heading_walk" yaml:"heading_walk"`
	Altitude            float64 `json:"altitude" yaml:"altitude"`
	AltitudeVariance    float64 `json:"altitude_variance" yaml:"altitude_variance"`
	WaypointSeparation  float64 `json:"waypoint_separation" yaml:"waypoint_separation"`
	WaypointSepVariance float64 `json:"waypoint_sep_variance" yaml:"waypoint_sep_variance"`
	NumRandomWaypoints  int     `json:"num_random_waypoints" yaml:"num_random_waypoints"`

	// sinusoid: each axis oscillates about its nominal value with the given
	// peak-to-peak amplitude and period
	Nominal [4]float64 `json:"nominal" yaml:"nominal"` // north, east, altitude, yaw
	Delta   [4]float64 `json:"delta" yaml:"delta"`
	Period  [4]float64 `json:"period" yaml:"period"`

	// constant velocity with a heading random walk
	CruiseAltitude      float64 `json:"cruise_altitude" yaml:"cruise_altitude"`
	VelocityMagnitude   float64 `json:"velocity_magnitude" yaml:"velocity_magnitude"`
	CruiseHeadingWalk   float64 `json:"cruise_heading_walk" yaml:"cruise_heading_walk"`
	HeadingStraightGain float64 `json:"heading_straight_gain" yaml:"heading_straight_gain"`
}

// Default returns a configuration with every sensor enabled except raw
// GNSS, which needs satellites.
func Default() *Config {
	return &Config{
		Sim: SimConfig{TMax: 60, Dt: 0.004, Seed: 0},
		Dynamics: DynamicsConfig{
			Mass:          1.0,
			MaxThrust:     19.6133,
			DragConstant:  0.1,
			AngularDrag:   0.01,
			Inertia:       [3]float64{0.1, 0.1, 0.1},
			RK4:           true,
			WindInitStdev: 0.1,
			WindWalkStdev: 0.1,
		},
		X0: InitialState{
			Position: [3]float64{0, 0, -5},
			Attitude: [4]float64{1, 0, 0, 0},
		},
		IMU: IMUConfig{
			Enabled:         true,
			UpdateRate:      250,
			QBU:             [4]float64{1, 0, 0, 0},
			AccelNoiseStdev: 0.1,
			AccelInitStdev:  0.1,
			AccelBiasWalk:   0.05,
			GyroNoiseStdev:  0.01,
			GyroInitStdev:   0.01,
			GyroBiasWalk:    0.001,
		},
		Camera: CameraConfig{
			Enabled:     true,
			UpdateRate:  20,
			TimeDelay:   0,
			Center:      [2]float64{320, 240},
			ImageSize:   [2]float64{640, 480},
			FocalLen:    [2]float64{250, 250},
			QBC:         [4]float64{0.7071067811865476, 0, 0, 0.7071067811865476},
			PixelStdev:  0.5,
			NumFeatures: 12,
			LoopClosure: true,
			DepthStdev:  0.1,
		},
		Altimeter: AltimeterConfig{Enabled: true, UpdateRate: 25, NoiseStdev: 0.1},
		Mocap: MocapConfig{
			Enabled:           true,
			UpdateRate:        50,
			PositionStdev:     0.01,
			AttitudeStdev:     0.01,
			TransmissionTime:  0.01,
			TransmissionStdev: 0.001,
			QBM:               [4]float64{1, 0, 0, 0},
		},
		VO: VOConfig{
			Enabled:          true,
			DeltaPosition:    0.5,
			DeltaAttitude:    0.5,
			TranslationStdev: 0.01,
			RotationStdev:    0.001,
		},
		GNSS: GNSSConfig{
			Enabled:         true,
			UpdateRate:      5,
			RefLLA:          [3]float64{40.246184, -111.647769, 1387.997511},
			HorizontalStdev: 1.0,
			VerticalStdev:   3.0,
			VelocityStdev:   0.1,
		},
		RawGNSS: RawGNSSConfig{
			PseudorangeStdev:     3.0,
			PseudorangeRateStdev: 0.1,
			CarrierPhaseStdev:    0.01,
			ClockInitStdev:       1e-4,
			ClockWalkStdev:       1e-7,
			StartWeek:            2026,
			StartTowSec:          165029,
		},
		Environment: EnvironmentConfig{Floor: 0, HeightVariation: 0.5, MaxRange: 100},
		Control: ControlConfig{
			Kp:                        [3]float64{1, 1, 1},
			Kd:                        [3]float64{0, 0, 0},
			Kv:                        [3]float64{2, 2, 2},
			ThrottleEq:                0.5,
			ShKv:                      50,
			ShKs:                      0.1,
			WaypointThreshold:         0.1,
			WaypointVelocityThreshold: 0.5,
			Roll:                      PIDGains{Kp: 10, Ki: 0, Kd: 1, Max: 1},
			Pitch:                     PIDGains{Kp: 10, Ki: 0, Kd: 1, Max: 1},
			YawRate:                   PIDGains{Kp: 1, Ki: 0, Kd: 0, Max: 0.5},
			HeadingGain:               1,
			MaxRoll:                   0.5,
			MaxPitch:                  0.5,
			MaxYawRate:                0.5,
			MaxThrottle:               1.0,
			MaxVel:                    5,
			LQRQ:                      [6]float64{4, 4, 4, 1, 1, 1},
			LQRR:                      [4]float64{1, 1, 1, 1},
			LQRMaxPosError:            5,
			LQRMaxVelError:            5,
			LQRMaxYawError:            1,
		},
		Trajectory: TrajectoryConfig{
			PathType: PathWaypoints,
			Waypoints: [][4]float64{
				{0, 0, -5, 0},
				{5, 0, -5, 0},
				{5, 5, -5, math.Pi / 2},
				{0, 5, -5, math.Pi},
			},
			Period: [4]float64{1, 1, 1, 1},
		},
	}
}

// Vec3 converts a configuration triple.
func Vec3(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// Quat converts a (w, x, y, z) configuration quaternion and normalizes it.
func Quat(a [4]float64) model.Quat {
	return model.NewQuat(a[0], a[1], a[2], a[3]).Normalized()
}

// State returns the configured initial vehicle state.
func (s InitialState) State() model.State {
	return model.State{
		P: Vec3(s.Position),
		Q: Quat(s.Attitude),
		V: Vec3(s.Velocity),
		W: Vec3(s.Omega),
	}
}

// RefLLARadians returns the NED anchor with latitude and longitude in
// radians.
func (g GNSSConfig) RefLLARadians() r3.Vec {
	return r3.Vec{
		X: g.RefLLA[0] * math.Pi / 180,
		Y: g.RefLLA[1] * math.Pi / 180,
		Z: g.RefLLA[2],
	}
}

// Rate returns the raw GNSS update rate, falling back to fallback when
// unset.
func (r RawGNSSConfig) Rate(fallback float64) float64 {
	if r.UpdateRate > 0 {
		return r.UpdateRate
	}
	return fallback
}

// IonoParams returns the configured Klobuchar coefficients.
func (r RawGNSSConfig) IonoParams() model.IonoParams {
	if r.Iono == nil {
		return model.DefaultIonoParams()
	}
	return model.IonoParams{Alpha: r.Iono.Alpha, Beta: r.Iono.Beta}
}

func quatNorm(a [4]float64) float64 {
	return math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2] + a[3]*a[3])
}

// Validate checks that the configuration can drive a simulation.
func (c *Config) Validate() error {
	if !(c.Sim.Dt > 0) {
		return fmt.Errorf("%w: dt = %v", ErrInvalidStep, c.Sim.Dt)
	}
	if c.Sim.TMax < c.Sim.Dt {
		return fmt.Errorf("%w: tmax = %v, dt = %v", ErrInvalidHorizon, c.Sim.TMax, c.Sim.Dt)
	}

	d := c.Dynamics
	if !(d.Mass > 0) || !(d.MaxThrust > 0) {
		return fmt.Errorf("%w: mass = %v, max_thrust = %v", ErrInvalidMass, d.Mass, d.MaxThrust)
	}
	for i, j := range d.Inertia {
		if !(j > 0) {
			return fmt.Errorf("%w: inertia[%d] = %v", ErrInvalidInertia, i, j)
		}
	}

	rates := []struct {
		name    string
		enabled bool
		rate    float64
	}{
		{"imu", c.IMU.Enabled, c.IMU.UpdateRate},
		{"camera", c.Camera.Enabled, c.Camera.UpdateRate},
		{"altimeter", c.Altimeter.Enabled, c.Altimeter.UpdateRate},
		{"mocap", c.Mocap.Enabled, c.Mocap.UpdateRate},
		{"gnss", c.GNSS.Enabled, c.GNSS.UpdateRate},
		{"raw_gnss", c.RawGNSS.Enabled, c.RawGNSS.Rate(c.GNSS.UpdateRate)},
	}
	for _, r := range rates {
		if r.enabled && !(r.rate > 0) {
			return fmt.Errorf("%w: %s update_rate = %v", ErrInvalidRate, r.name, r.rate)
		}
	}

	stdevs := []struct {
		name  string
		value float64
	}{
		{"wind_init_stdev", d.WindInitStdev},
		{"wind_walk_stdev", d.WindWalkStdev},
		{"accel_noise_stdev", c.IMU.AccelNoiseStdev},
		{"accel_init_stdev", c.IMU.AccelInitStdev},
		{"accel_bias_walk", c.IMU.AccelBiasWalk},
		{"gyro_noise_stdev", c.IMU.GyroNoiseStdev},
		{"gyro_init_stdev", c.IMU.GyroInitStdev},
		{"gyro_bias_walk", c.IMU.GyroBiasWalk},
		{"pixel_noise_stdev", c.Camera.PixelStdev},
		{"depth_noise_stdev", c.Camera.DepthStdev},
		{"altimeter noise_stdev", c.Altimeter.NoiseStdev},
		{"mocap position_noise_stdev", c.Mocap.PositionStdev},
		{"mocap attitude_noise_stdev", c.Mocap.AttitudeStdev},
		{"mocap transmission_noise", c.Mocap.TransmissionStdev},
		{"vo translation_noise_stdev", c.VO.TranslationStdev},
		{"vo rotation_noise_stdev", c.VO.RotationStdev},
		{"gnss horizontal_position_stdev", c.GNSS.HorizontalStdev},
		{"gnss vertical_position_stdev", c.GNSS.VerticalStdev},
		{"gnss velocity_stdev", c.GNSS.VelocityStdev},
		{"pseudorange_stdev", c.RawGNSS.PseudorangeStdev},
		{"pseudorange_rate_stdev", c.RawGNSS.PseudorangeRateStdev},
		{"carrier_phase_stdev", c.RawGNSS.CarrierPhaseStdev},
		{"clock_init_stdev", c.RawGNSS.ClockInitStdev},
		{"clock_walk_stdev", c.RawGNSS.ClockWalkStdev},
		{"height_variation", c.Environment.HeightVariation},
	}
	for _, sd := range stdevs {
		if sd.value < 0 || math.IsNaN(sd.value) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidStdev, sd.name, sd.value)
		}
	}

	quats := []struct {
		name string
		q    [4]float64
	}{
		{"x0.attitude", c.X0.Attitude},
		{"q_b_u", c.IMU.QBU},
		{"q_b_c", c.Camera.QBC},
		{"q_b_m", c.Mocap.QBM},
	}
	for _, q := range quats {
		if quatNorm(q.q) == 0 {
			return fmt.Errorf("%w: %s", ErrInvalidQuaternion, q.name)
		}
	}

	if c.Camera.Enabled {
		cam := c.Camera
		if !(cam.FocalLen[0] > 0) || !(cam.FocalLen[1] > 0) ||
			!(cam.ImageSize[0] > 0) || !(cam.ImageSize[1] > 0) || cam.NumFeatures < 0 {
			return fmt.Errorf("%w: focal_len = %v, image_size = %v, num_features = %d",
				ErrInvalidCamera, cam.FocalLen, cam.ImageSize, cam.NumFeatures)
		}
	}

	switch c.Trajectory.PathType {
	case PathWaypoints:
		if len(c.Trajectory.Waypoints) == 0 {
			return ErrNoWaypoints
		}
	case PathRandomWaypoints:
		if c.Trajectory.NumRandomWaypoints <= 0 {
			return fmt.Errorf("%w: num_random_waypoints = %d", ErrNoWaypoints, c.Trajectory.NumRandomWaypoints)
		}
	case PathSinusoid:
		for i, p := range c.Trajectory.Period {
			if !(p > 0) {
				return fmt.Errorf("%w: sinusoid period[%d] = %v", ErrUnknownPathType, i, p)
			}
		}
	case PathConstantVelocity:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownPathType, c.Trajectory.PathType)
	}

	switch c.Control.ControlType {
	case ControlNonlinear:
	case ControlLQR:
		for i, q := range c.Control.LQRQ {
			if q < 0 || math.IsNaN(q) {
				return fmt.Errorf("%w: lqr_q[%d] = %v", ErrInvalidLQRWeights, i, q)
			}
		}
		for i, r := range c.Control.LQRR {
			if !(r > 0) {
				return fmt.Errorf("%w: lqr_r[%d] = %v", ErrInvalidLQRWeights, i, r)
			}
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownControlType, c.Control.ControlType)
	}

	// Checked last: a simulator given satellites directly ignores this error
	// only once everything else is known to be valid.
	if c.RawGNSS.Enabled && c.RawGNSS.EphemerisFile == "" && len(c.RawGNSS.TLE) == 0 {
		return ErrNoSatellites
	}
	return nil
}
