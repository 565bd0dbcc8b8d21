package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/internal/logging"
	"github.com/signalsfoundry/multirotor-sim/model"
	"github.com/signalsfoundry/multirotor-sim/timectrl"
)

// MetricsRecorder receives per-tick telemetry from a Simulator.
type MetricsRecorder interface {
	// ObserveMeasurement counts one measurement dispatched on channel.
	ObserveMeasurement(channel string)
	// SetTrackedFeatures reports the camera's tracked feature count.
	SetTrackedFeatures(n int)
	// ObserveStep reports the simulated time reached and the wall time the
	// tick took.
	ObserveStep(t float64, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMeasurement(string)          {}
func (nopRecorder) SetTrackedFeatures(int)             {}
func (nopRecorder) ObserveStep(float64, time.Duration) {}

// SimulatorOption configures optional Simulator collaborators.
type SimulatorOption func(*Simulator)

// WithMetricsRecorder wires a metrics recorder into the Simulator.
func WithMetricsRecorder(r MetricsRecorder) SimulatorOption {
	return func(s *Simulator) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithSatellites replaces the satellites built from the configuration.
func WithSatellites(sats []*Satellite) SimulatorOption {
	return func(s *Simulator) { s.sats = sats }
}

// WithTruthLog writes the true state to l after every tick instead of the
// file named by the configuration. The Simulator closes l.
func WithTruthLog(l *TruthLog) SimulatorOption {
	return func(s *Simulator) { s.truthLog = l }
}

// Simulator advances the vehicle and dispatches synthesized measurements to
// the registered estimators, one fixed step per Run call.
type Simulator struct {
	cfg   *config.Config
	log   logging.Logger
	seed  int64
	clock *timectrl.TimeController

	dyn  *Dynamics
	env  Environment
	ctrl Controller
	traj Trajectory
	u    model.Input

	imu    *imuChannel
	camera *cameraChannel
	alt    *altimeterChannel
	mocap  *mocapChannel
	vo     *voChannel
	gnss   *gnssChannel
	raw    *rawGNSSChannel
	sats   []*Satellite

	estimators []Estimator
	metrics    MetricsRecorder
	truthLog   *TruthLog
}

// NewSimulator builds a Simulator from cfg. A negative seed is replaced by
// the wall clock. Raw GNSS satellites are built from the configuration
// unless supplied with WithSatellites.
func NewSimulator(cfg *config.Config, env Environment, ctrl Controller, traj Trajectory, log logging.Logger, opts ...SimulatorOption) (*Simulator, error) {
	if log == nil {
		log = logging.Noop()
	}
	s := &Simulator{
		cfg:     cfg,
		log:     log,
		env:     env,
		ctrl:    ctrl,
		traj:    traj,
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := cfg.Validate(); err != nil {
		if !errors.Is(err, config.ErrNoSatellites) || s.sats == nil {
			return nil, fmt.Errorf("NewSimulator: %w", err)
		}
	}
	if cfg.Camera.Enabled && env == nil {
		return nil, fmt.Errorf("NewSimulator: camera enabled without an environment")
	}

	s.seed = cfg.Sim.Seed
	if s.seed < 0 {
		s.seed = time.Now().UnixNano()
	}

	mode := timectrl.Accelerated
	if cfg.Sim.RealTime {
		mode = timectrl.RealTime
	}
	s.clock = timectrl.NewTimeController(cfg.Sim.Dt, cfg.Sim.TMax, mode)

	s.dyn = NewDynamics(cfg, s.seed)
	s.u = model.Input{Thrust: s.dyn.HoverThrottle()}

	if cfg.IMU.Enabled {
		s.imu = newIMUChannel(cfg.IMU, s.seed)
	}
	if cfg.Camera.Enabled {
		s.camera = newCameraChannel(cfg.Camera, env, s.seed, log.With(logging.String("channel", ChannelCamera)))
	}
	if cfg.Altimeter.Enabled {
		s.alt = newAltimeterChannel(cfg.Altimeter, s.seed)
	}
	if cfg.Mocap.Enabled {
		s.mocap = newMocapChannel(cfg.Mocap, s.seed)
	}
	if cfg.VO.Enabled {
		s.vo = newVOChannel(cfg.VO, cfg.Camera, s.dyn.State(), s.seed)
	}

	nedToECEF := NEDToECEF(cfg.GNSS.RefLLARadians())
	if cfg.GNSS.Enabled {
		s.gnss = newGNSSChannel(cfg.GNSS, nedToECEF, s.seed)
	}
	if cfg.RawGNSS.Enabled {
		if s.sats == nil {
			sats, err := s.buildSatellites()
			if err != nil {
				return nil, err
			}
			s.sats = sats
		}
		s.raw = newRawGNSSChannel(cfg.RawGNSS, cfg.RawGNSS.Rate(cfg.GNSS.UpdateRate), nedToECEF, s.sats, s.seed)
	}

	if s.truthLog == nil && cfg.Sim.LogFilename != "" {
		l, err := CreateTruthLog(cfg.Sim.LogFilename)
		if err != nil {
			return nil, fmt.Errorf("NewSimulator: %w", err)
		}
		s.truthLog = l
	}

	log.Info(context.Background(), "simulator ready",
		logging.Any("seed", s.seed),
		logging.Any("dt", cfg.Sim.Dt),
		logging.Any("tmax", cfg.Sim.TMax),
		logging.Int("satellites", len(s.sats)),
	)
	return s, nil
}

// buildSatellites loads the configured satellites, skipping those whose
// orbit data is unusable.
func (s *Simulator) buildSatellites() ([]*Satellite, error) {
	defs, err := s.cfg.Satellites()
	if err != nil {
		return nil, fmt.Errorf("NewSimulator: %w", err)
	}
	iono := s.cfg.RawGNSS.IonoParams()
	sats := make([]*Satellite, 0, len(defs))
	for _, def := range defs {
		sat, err := NewSatellite(def, iono)
		if err != nil {
			s.log.Debug(context.Background(), "skipping satellite",
				logging.Int("sat", def.ID), logging.Err(err))
			continue
		}
		sats = append(sats, sat)
	}
	if len(sats) == 0 {
		return nil, fmt.Errorf("NewSimulator: %w", config.ErrNoSatellites)
	}
	return sats, nil
}

// RegisterEstimator adds e to the consumers of every measurement. Consumers
// are called in registration order.
func (s *Simulator) RegisterEstimator(e Estimator) {
	s.estimators = append(s.estimators, e)
}

// Run advances the simulation by one step. It returns false once the
// horizon has been reached, without stepping.
func (s *Simulator) Run() bool {
	t, ok := s.clock.Advance()
	if !ok {
		return false
	}
	start := time.Now()

	x := s.dyn.State()
	if s.traj != nil {
		xc, ur := s.traj.CommandedState(t)
		if s.ctrl != nil {
			s.u = s.ctrl.ComputeControl(t, x, xc, ur)
		}
	}
	x, imu := s.dyn.Step(s.u, s.cfg.Sim.Dt)

	s.dispatch(t, x, imu)

	if s.truthLog != nil {
		if err := s.truthLog.Write(t, x); err != nil {
			s.log.Warn(context.Background(), "truth log disabled", logging.Err(err))
			s.truthLog = nil
		}
	}
	s.metrics.ObserveStep(t, time.Since(start))
	return true
}

// dispatch samples every enabled channel at t and delivers the results.
func (s *Simulator) dispatch(t float64, x model.State, imu model.IMU) {
	if s.imu != nil {
		if z, ok := s.imu.sample(t, imu); ok {
			s.metrics.ObserveMeasurement(ChannelIMU)
			for _, e := range s.estimators {
				e.OnIMU(t, z, s.imu.R)
			}
		}
	}

	if s.camera != nil {
		if n := s.camera.capture(t, x); n >= 0 {
			s.metrics.SetTrackedFeatures(n)
		}
		for _, img := range s.camera.deliver(t) {
			s.metrics.ObserveMeasurement(ChannelCamera)
			for _, e := range s.estimators {
				e.OnImage(img.T, img, s.camera.pixelR, s.camera.depthR)
			}
		}
	}

	if s.alt != nil {
		if z, ok := s.alt.sample(t, x); ok {
			s.metrics.ObserveMeasurement(ChannelAltimeter)
			for _, e := range s.estimators {
				e.OnAltitude(t, z, s.alt.R)
			}
		}
	}

	if s.mocap != nil {
		s.mocap.capture(t, x)
		for _, m := range s.mocap.deliver(t) {
			s.metrics.ObserveMeasurement(ChannelMocap)
			for _, e := range s.estimators {
				e.OnMocap(m.T, m.Pose, s.mocap.R)
			}
		}
	}

	if s.vo != nil {
		if z, ok := s.vo.sample(x); ok {
			s.metrics.ObserveMeasurement(ChannelVO)
			for _, e := range s.estimators {
				e.OnVisualOdometry(t, z, s.vo.R)
			}
		}
	}

	if s.gnss != nil {
		if z, ok := s.gnss.sample(t, x); ok {
			s.metrics.ObserveMeasurement(ChannelGNSS)
			for _, e := range s.estimators {
				e.OnGNSS(t, z, s.gnss.R)
			}
		}
	}

	if s.raw != nil {
		if now, obs, ok := s.raw.sample(t, x); ok {
			for _, o := range obs {
				s.metrics.ObserveMeasurement(ChannelRawGNSS)
				for _, e := range s.estimators {
					e.OnRawGNSS(now, o.Z, s.raw.R, o.Sat)
				}
			}
		}
	}
}

// Close flushes and closes the truth log.
func (s *Simulator) Close() error {
	if s.truthLog == nil {
		return nil
	}
	err := s.truthLog.Close()
	s.truthLog = nil
	return err
}

// Time returns the current simulated time.
func (s *Simulator) Time() float64 { return s.clock.Now() }

// Clock returns the simulated clock.
func (s *Simulator) Clock() *timectrl.TimeController { return s.clock }

// State returns the true vehicle state.
func (s *Simulator) State() model.State { return s.dyn.State() }

// Input returns the control input applied at the last step.
func (s *Simulator) Input() model.Input { return s.u }

// Dynamics returns the vehicle model.
func (s *Simulator) Dynamics() *Dynamics { return s.dyn }

// Seed returns the master noise seed in use.
func (s *Simulator) Seed() int64 { return s.seed }

// Satellites returns the raw GNSS satellites.
func (s *Simulator) Satellites() []*Satellite { return s.sats }

// GPSTime returns the GNSS time of simulated time t. It is the zero GTime
// when raw GNSS is disabled.
func (s *Simulator) GPSTime(t float64) timectrl.GTime {
	if s.raw == nil {
		return timectrl.GTime{}
	}
	return s.raw.gpsTime(t)
}
