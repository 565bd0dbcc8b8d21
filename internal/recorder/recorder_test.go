package recorder

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/multirotor-sim/core"
	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/internal/logging"
	"github.com/signalsfoundry/multirotor-sim/model"
	"github.com/signalsfoundry/multirotor-sim/timectrl"
)

func openTemp(t *testing.T, opts ...Option) (*Recorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "measurements.db")
	r, err := Open(path, 42, opts...)
	require.NoError(t, err)
	return r, path
}

func TestRecorderStoresMeasurements(t *testing.T) {
	r, _ := openTemp(t)
	defer r.Close()

	R := mat.NewSymDense(1, []float64{0.01})
	r.OnAltitude(0.04, 5.2, R)
	r.OnIMU(0.004, model.IMU{Accel: r3.Vec{Z: -9.8}}, mat.NewDiagDense(2, []float64{1, 2}))
	r.OnRawGNSS(timectrl.NewGTime(2026, 100), model.RawObservation{Pseudorange: 2e7}, nil, nil)

	counts, err := r.Counts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		core.ChannelAltimeter: 1,
		core.ChannelIMU:       1,
		core.ChannelRawGNSS:   1,
	}, counts)
	assert.Equal(t, 3, r.Count())

	rows, err := r.Rows(core.ChannelAltimeter)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.04, rows[0].T.Float64, 1e-12)
	assert.Equal(t, "5.2", rows[0].Value)
	assert.Equal(t, []float64{0.01}, rows[0].CovDiag)
	assert.False(t, rows[0].GPSWeek.Valid)

	rows, err = r.Rows(core.ChannelIMU)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	var imu model.IMU
	require.NoError(t, json.Unmarshal([]byte(rows[0].Value), &imu))
	assert.Equal(t, -9.8, imu.Accel.Z)
	assert.Equal(t, []float64{1, 2}, rows[0].CovDiag)

	rows, err = r.Rows(core.ChannelRawGNSS)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].T.Valid)
	assert.Equal(t, int64(2026), rows[0].GPSWeek.Int64)
	assert.Equal(t, 100.0, rows[0].GPSTow.Float64)
	assert.False(t, rows[0].SatID.Valid)
	assert.Nil(t, rows[0].CovDiag)
}

func TestRecorderBatches(t *testing.T) {
	r, _ := openTemp(t, WithBatchSize(2))
	defer r.Close()

	for i := 0; i < 5; i++ {
		r.OnAltitude(float64(i), float64(i), nil)
	}
	assert.Equal(t, 1, r.pending)

	counts, err := r.Counts()
	require.NoError(t, err)
	assert.Equal(t, 5, counts[core.ChannelAltimeter])
	assert.Zero(t, r.pending)
}

func TestRecorderRunsAreSeparate(t *testing.T) {
	first, path := openTemp(t, WithRunID("first"))
	first.OnAltitude(1, 1, nil)
	first.OnAltitude(2, 2, nil)
	require.NoError(t, first.Close())
	require.NoError(t, first.Close(), "second Close")

	second, err := Open(path, 7)
	require.NoError(t, err)
	assert.NotEqual(t, "first", second.RunID())
	assert.Len(t, second.RunID(), 36)
	second.OnAltitude(3, 3, nil)
	counts, err := second.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[core.ChannelAltimeter])
	require.NoError(t, second.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var seed, n int64
	require.NoError(t, db.QueryRow(
		`SELECT seed, measurement_count FROM runs WHERE run_id = ?`, "first").Scan(&seed, &n))
	assert.Equal(t, int64(42), seed)
	assert.Equal(t, int64(2), n)

	var runs int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM runs WHERE end_timestamp IS NOT NULL`).Scan(&runs))
	assert.Equal(t, 2, runs)
}

func TestRecorderClosed(t *testing.T) {
	r, _ := openTemp(t)
	require.NoError(t, r.Close())

	_, err := r.Counts()
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = r.Rows(core.ChannelIMU)
	assert.True(t, errors.Is(err, ErrClosed))

	r.OnAltitude(1, 1, nil)
	assert.True(t, errors.Is(r.Err(), ErrClosed))
}

func TestRecorderDuplicateRunID(t *testing.T) {
	r, path := openTemp(t, WithRunID("dup"))
	require.NoError(t, r.Close())

	_, err := Open(path, 1, WithRunID("dup"))
	assert.Error(t, err)
}

func TestRecorderRecordsSimulation(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.TMax = 1
	cfg.Sim.Seed = 3
	cfg.Camera.Enabled = false

	rec, _ := openTemp(t, WithLogger(logging.Noop()))
	defer rec.Close()

	s, err := core.NewSimulator(cfg, nil, nil, nil, logging.Noop())
	require.NoError(t, err)
	s.RegisterEstimator(rec)
	for s.Run() {
	}
	require.NoError(t, rec.Err())

	counts, err := rec.Counts()
	require.NoError(t, err)
	assert.Equal(t, 250, counts[core.ChannelIMU])
	assert.InDelta(t, 25, counts[core.ChannelAltimeter], 1)
	assert.InDelta(t, 5, counts[core.ChannelGNSS], 1)

	rows, err := rec.Rows(core.ChannelGNSS)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Len(t, rows[0].CovDiag, 6)
	for i := 1; i < len(rows); i++ {
		assert.Greater(t, rows[i].T.Float64, rows[i-1].T.Float64)
	}
}
