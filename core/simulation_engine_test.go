package core

import (
	"bytes"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/internal/logging"
	"github.com/signalsfoundry/multirotor-sim/model"
	"github.com/signalsfoundry/multirotor-sim/timectrl"
)

type dispatchEvent struct {
	t       float64
	channel string
	who     string
}

// recordingEstimator logs every callback it receives.
type recordingEstimator struct {
	who    string
	sim    *Simulator
	events *[]dispatchEvent
	alts   []float64
}

func (r *recordingEstimator) add(channel string) {
	*r.events = append(*r.events, dispatchEvent{t: r.sim.Time(), channel: channel, who: r.who})
}

func (r *recordingEstimator) OnIMU(float64, model.IMU, mat.Symmetric) { r.add(ChannelIMU) }
func (r *recordingEstimator) OnImage(float64, model.Image, mat.Symmetric, mat.Symmetric) {
	r.add(ChannelCamera)
}
func (r *recordingEstimator) OnAltitude(_ float64, z float64, _ mat.Symmetric) {
	r.alts = append(r.alts, z)
	r.add(ChannelAltimeter)
}
func (r *recordingEstimator) OnMocap(float64, model.Xform, mat.Symmetric) { r.add(ChannelMocap) }
func (r *recordingEstimator) OnVisualOdometry(float64, model.Xform, mat.Symmetric) {
	r.add(ChannelVO)
}
func (r *recordingEstimator) OnGNSS(float64, model.GNSSFix, mat.Symmetric) { r.add(ChannelGNSS) }
func (r *recordingEstimator) OnRawGNSS(timectrl.GTime, model.RawObservation, mat.Symmetric, *Satellite) {
	r.add(ChannelRawGNSS)
}

type countingRecorder struct {
	counts  map[string]int
	tracked []int
	steps   int
	lastT   float64
}

func (c *countingRecorder) ObserveMeasurement(channel string) { c.counts[channel]++ }
func (c *countingRecorder) SetTrackedFeatures(n int)          { c.tracked = append(c.tracked, n) }
func (c *countingRecorder) ObserveStep(t float64, _ time.Duration) {
	c.steps++
	c.lastT = t
}

func simConfig() *config.Config {
	cfg := config.Default()
	cfg.Sim.TMax = 1
	cfg.Sim.Seed = 42
	cfg.Dynamics.WindEnabled = false
	return cfg
}

func runToEnd(s *Simulator) int {
	n := 0
	for s.Run() {
		n++
	}
	return n
}

func TestSimulatorRunsToHorizon(t *testing.T) {
	rec := &countingRecorder{counts: map[string]int{}}
	s, err := NewSimulator(simConfig(), &flatGround{}, nil, nil, logging.Noop(), WithMetricsRecorder(rec))
	require.NoError(t, err)

	assert.Equal(t, 250, runToEnd(s))
	assert.False(t, s.Run(), "Run stepped past the horizon")
	assert.InDelta(t, 1.0, s.Time(), 1e-12)
	assert.Equal(t, 250, rec.steps)
	assert.InDelta(t, 1.0, rec.lastT, 1e-12)

	assert.Equal(t, 250, rec.counts[ChannelIMU])
	assert.InDelta(t, 25, rec.counts[ChannelAltimeter], 1)
	assert.InDelta(t, 5, rec.counts[ChannelGNSS], 1)
	assert.NotZero(t, rec.counts[ChannelCamera])
	assert.NotZero(t, rec.counts[ChannelMocap])
	assert.Zero(t, rec.counts[ChannelRawGNSS])
	for _, n := range rec.tracked {
		assert.LessOrEqual(t, n, 12)
	}
}

func TestSimulatorHoversWithoutController(t *testing.T) {
	s, err := NewSimulator(simConfig(), &flatGround{}, nil, nil, nil)
	require.NoError(t, err)
	runToEnd(s)

	x := s.State()
	vecNear(t, r3.Vec{Z: -5}, x.P, 1e-9)
	assert.InDelta(t, 0.5, s.Input().Thrust, 1e-12)
}

type fixedController struct {
	calls int
	u     model.Input
}

func (c *fixedController) ComputeControl(float64, model.State, model.State, model.Input) model.Input {
	c.calls++
	return c.u
}

type fixedTrajectory struct{ calls int }

func (tr *fixedTrajectory) CommandedState(float64) (model.State, model.Input) {
	tr.calls++
	return model.NewState(), model.Input{}
}

func TestSimulatorUsesController(t *testing.T) {
	cfg := simConfig()
	ctrl := &fixedController{}
	traj := &fixedTrajectory{}
	s, err := NewSimulator(cfg, &flatGround{}, ctrl, traj, logging.Noop())
	require.NoError(t, err)
	runToEnd(s)

	assert.Equal(t, 250, ctrl.calls)
	assert.Equal(t, 250, traj.calls)
	// zero thrust: free fall for one second
	assert.Greater(t, s.State().P.Z, -5.0+4)
}

func TestSimulatorDispatchOrder(t *testing.T) {
	cfg := simConfig()
	cfg.Mocap.TransmissionTime = 0
	cfg.Mocap.TransmissionStdev = 0
	s, err := NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop())
	require.NoError(t, err)

	var events []dispatchEvent
	a := &recordingEstimator{who: "a", sim: s, events: &events}
	b := &recordingEstimator{who: "b", sim: s, events: &events}
	s.RegisterEstimator(a)
	s.RegisterEstimator(b)
	runToEnd(s)
	require.NotEmpty(t, events)

	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if prev.t != cur.t {
			continue
		}
		pi := slices.Index(Channels, prev.channel)
		ci := slices.Index(Channels, cur.channel)
		if ci < pi {
			t.Fatalf("at t = %v %s dispatched after %s", cur.t, cur.channel, prev.channel)
		}
		if prev.channel == cur.channel && prev.who == cur.who {
			continue
		}
		if prev.channel == cur.channel && !(prev.who == "a" && cur.who == "b") {
			t.Fatalf("at t = %v %s reached %s before %s", cur.t, cur.channel, prev.who, cur.who)
		}
	}
	assert.Equal(t, a.alts, b.alts)
}

func TestSimulatorReproducible(t *testing.T) {
	alts := func(seed int64) []float64 {
		cfg := simConfig()
		cfg.Sim.Seed = seed
		s, err := NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop())
		require.NoError(t, err)
		var events []dispatchEvent
		r := &recordingEstimator{who: "r", sim: s, events: &events}
		s.RegisterEstimator(r)
		runToEnd(s)
		return r.alts
	}
	assert.Equal(t, alts(7), alts(7))
	assert.NotEqual(t, alts(7), alts(8))
}

func TestSimulatorChannelsAreIndependent(t *testing.T) {
	alts := func(gnss bool) []float64 {
		cfg := simConfig()
		cfg.GNSS.Enabled = gnss
		cfg.Camera.Enabled = gnss
		s, err := NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop())
		require.NoError(t, err)
		var events []dispatchEvent
		r := &recordingEstimator{who: "r", sim: s, events: &events}
		s.RegisterEstimator(r)
		runToEnd(s)
		return r.alts
	}
	assert.Equal(t, alts(true), alts(false))
}

func TestSimulatorNegativeSeedUsesClock(t *testing.T) {
	cfg := simConfig()
	cfg.Sim.Seed = -1
	s, err := NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop())
	require.NoError(t, err)
	assert.Greater(t, s.Seed(), int64(0))
}

func TestSimulatorTruthLog(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewSimulator(simConfig(), &flatGround{}, nil, nil, logging.Noop(), WithTruthLog(NewTruthLog(&buf)))
	require.NoError(t, err)
	runToEnd(s)
	require.NoError(t, s.Close())

	recs, err := ReadTruthLog(&buf)
	require.NoError(t, err)
	require.Len(t, recs, 250)
	assert.InDelta(t, 0.004, recs[0].T, 1e-12)
	assert.InDelta(t, 1.0, recs[249].T, 1e-12)
	assert.Equal(t, s.State(), recs[249].State)
}

func TestSimulatorTruthLogFile(t *testing.T) {
	cfg := simConfig()
	cfg.Sim.LogFilename = t.TempDir() + "/logs/truth.bin"
	s, err := NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		s.Run()
	}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestReadTruthLogPartialRecord(t *testing.T) {
	var buf bytes.Buffer
	l := NewTruthLog(&buf)
	require.NoError(t, l.Write(1, model.NewState()))
	require.NoError(t, l.Close())
	buf.Truncate(buf.Len() - 3)

	recs, err := ReadTruthLog(&buf)
	assert.Error(t, err)
	assert.Empty(t, recs)
}

func TestNewSimulatorErrors(t *testing.T) {
	cfg := simConfig()
	cfg.Sim.Dt = 0
	_, err := NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop())
	assert.True(t, errors.Is(err, config.ErrInvalidStep), "err = %v", err)

	cfg = simConfig()
	_, err = NewSimulator(cfg, nil, nil, nil, logging.Noop())
	assert.Error(t, err, "camera without an environment")

	cfg = simConfig()
	cfg.RawGNSS.Enabled = true
	_, err = NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop())
	assert.True(t, errors.Is(err, config.ErrNoSatellites), "err = %v", err)

	cfg = simConfig()
	cfg.Control.ControlType = 2
	_, err = NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop())
	assert.True(t, errors.Is(err, config.ErrUnknownControlType), "err = %v", err)
}

func TestSupplyingSatellitesKeepsOtherValidation(t *testing.T) {
	sats := WithSatellites([]*Satellite{testSatellite(t)})

	cfg := simConfig()
	cfg.RawGNSS.Enabled = true
	_, err := NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop(), sats)
	require.NoError(t, err)

	cfg = simConfig()
	cfg.RawGNSS.Enabled = true
	cfg.Trajectory.PathType = 7
	_, err = NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop(), sats)
	assert.True(t, errors.Is(err, config.ErrUnknownPathType), "err = %v", err)

	cfg = simConfig()
	cfg.RawGNSS.Enabled = true
	cfg.Control.ControlType = 9
	_, err = NewSimulator(cfg, &flatGround{}, nil, nil, logging.Noop(), sats)
	assert.True(t, errors.Is(err, config.ErrUnknownControlType), "err = %v", err)
}

func TestSimulatorRawGNSS(t *testing.T) {
	cfg := simConfig()
	cfg.Camera.Enabled = false
	cfg.RawGNSS.Enabled = true
	cfg.RawGNSS.StartWeek = 0
	cfg.RawGNSS.StartTowSec = 92000
	cfg.RawGNSS.ElevationMask = -math.Pi / 2

	rec := &countingRecorder{counts: map[string]int{}}
	s, err := NewSimulator(cfg, nil, nil, nil, logging.Noop(),
		WithSatellites([]*Satellite{testSatellite(t)}), WithMetricsRecorder(rec))
	require.NoError(t, err)

	var events []dispatchEvent
	s.RegisterEstimator(&recordingEstimator{who: "r", sim: s, events: &events})
	runToEnd(s)

	assert.InDelta(t, 5, rec.counts[ChannelRawGNSS], 1)
	assert.Len(t, s.Satellites(), 1)
	assert.InDelta(t, 0.5, s.GPSTime(0.5).Sub(timectrl.NewGTime(0, 92000)), 1e-9)
}
