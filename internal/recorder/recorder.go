// Package recorder stores every measurement dispatched by a simulation run
// in a SQLite database.
package recorder

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/multirotor-sim/core"
	"github.com/signalsfoundry/multirotor-sim/internal/logging"
	"github.com/signalsfoundry/multirotor-sim/model"
	"github.com/signalsfoundry/multirotor-sim/timectrl"
)

// schema.sql creates the runs and measurements tables.
//
//go:embed schema.sql
var schemaSQL string

// defaultBatch is the number of rows written per transaction.
const defaultBatch = 500

// ErrClosed is returned by operations on a closed Recorder.
var ErrClosed = errors.New("recorder closed")

// Row is one recorded measurement.
type Row struct {
	Channel string
	T       sql.NullFloat64 // simulation time; null for raw GNSS rows
	GPSWeek sql.NullInt64
	GPSTow  sql.NullFloat64
	SatID   sql.NullInt64
	Value   string // JSON encoding of the measurement
	CovDiag []float64
}

// Recorder is a core.Estimator that writes each measurement it receives as
// one row tagged with the run id. Writes are batched in transactions; the
// first write error is kept and returned by Err and Close, and later
// measurements are dropped.
type Recorder struct {
	db    *sql.DB
	runID string
	log   logging.Logger
	batch int

	tx      *sql.Tx
	insert  *sql.Stmt
	pending int
	count   int
	err     error
	closed  bool
}

var _ core.Estimator = (*Recorder)(nil)

// Option configures a Recorder.
type Option func(*Recorder)

// WithRunID tags rows with id instead of a fresh UUID.
func WithRunID(id string) Option { return func(r *Recorder) { r.runID = id } }

// WithBatchSize sets the number of rows per transaction.
func WithBatchSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.batch = n
		}
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(log logging.Logger) Option {
	return func(r *Recorder) {
		if log != nil {
			r.log = log
		}
	}
}

// Open creates or opens the database at path, applies the schema and
// registers a new run with the given seed.
func Open(path string, seed int64, opts ...Option) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", path, err)
	}
	// a single connection keeps the transaction and the reads on one handle
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: apply schema: %w", err)
	}

	r := &Recorder{db: db, log: logging.Noop(), batch: defaultBatch}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}

	if _, err := db.Exec(`INSERT INTO runs (run_id, seed) VALUES (?, ?)`, r.runID, seed); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: start run: %w", err)
	}
	return r, nil
}

// RunID identifies the rows written by this recorder.
func (r *Recorder) RunID() string { return r.runID }

// Count returns the number of measurements accepted so far.
func (r *Recorder) Count() int { return r.count }

// Err returns the first write error, if any.
func (r *Recorder) Err() error { return r.err }

func (r *Recorder) OnIMU(t float64, z model.IMU, R mat.Symmetric) {
	r.record(core.ChannelIMU, simTime(t), nil, -1, z, R)
}

func (r *Recorder) OnImage(t float64, img model.Image, pixelR, _ mat.Symmetric) {
	r.record(core.ChannelCamera, simTime(t), nil, -1, img, pixelR)
}

func (r *Recorder) OnAltitude(t float64, z float64, R mat.Symmetric) {
	r.record(core.ChannelAltimeter, simTime(t), nil, -1, z, R)
}

func (r *Recorder) OnMocap(t float64, z model.Xform, R mat.Symmetric) {
	r.record(core.ChannelMocap, simTime(t), nil, -1, z, R)
}

func (r *Recorder) OnVisualOdometry(t float64, z model.Xform, R mat.Symmetric) {
	r.record(core.ChannelVO, simTime(t), nil, -1, z, R)
}

func (r *Recorder) OnGNSS(t float64, z model.GNSSFix, R mat.Symmetric) {
	r.record(core.ChannelGNSS, simTime(t), nil, -1, z, R)
}

func (r *Recorder) OnRawGNSS(t timectrl.GTime, z model.RawObservation, R mat.Symmetric, sat *core.Satellite) {
	id := -1
	if sat != nil {
		id = sat.ID
	}
	r.record(core.ChannelRawGNSS, sql.NullFloat64{}, &t, id, z, R)
}

func simTime(t float64) sql.NullFloat64 { return sql.NullFloat64{Float64: t, Valid: true} }

func (r *Recorder) record(channel string, t sql.NullFloat64, gps *timectrl.GTime, satID int, z any, R mat.Symmetric) {
	if r.err != nil {
		return
	}
	if r.closed {
		r.fail(ErrClosed)
		return
	}

	value, err := json.Marshal(z)
	if err != nil {
		r.fail(fmt.Errorf("encode %s measurement: %w", channel, err))
		return
	}
	cov, err := json.Marshal(diagonal(R))
	if err != nil {
		r.fail(fmt.Errorf("encode %s covariance: %w", channel, err))
		return
	}

	var week sql.NullInt64
	var tow sql.NullFloat64
	if gps != nil {
		week = sql.NullInt64{Int64: gps.Week, Valid: true}
		tow = sql.NullFloat64{Float64: gps.TowSec, Valid: true}
	}
	var sat sql.NullInt64
	if satID >= 0 {
		sat = sql.NullInt64{Int64: int64(satID), Valid: true}
	}

	if r.tx == nil {
		if err := r.begin(); err != nil {
			r.fail(err)
			return
		}
	}
	if _, err := r.insert.Exec(r.runID, channel, t, week, tow, sat, string(value), string(cov)); err != nil {
		r.fail(fmt.Errorf("insert %s measurement: %w", channel, err))
		return
	}
	r.count++
	r.pending++
	if r.pending >= r.batch {
		if err := r.commit(); err != nil {
			r.fail(err)
		}
	}
}

func (r *Recorder) begin() error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO measurements (run_id, channel, t, gps_week, gps_tow, sat_id, value, cov_diag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	r.tx, r.insert = tx, stmt
	return nil
}

// commit flushes the open transaction, if any.
func (r *Recorder) commit() error {
	if r.tx == nil {
		return nil
	}
	tx := r.tx
	r.tx, r.insert, r.pending = nil, nil, 0
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Recorder) fail(err error) {
	r.err = err
	r.log.Warn(context.Background(), "measurement recording stopped",
		logging.String("run_id", r.runID),
		logging.Err(err),
	)
}

// Flush commits any buffered rows.
func (r *Recorder) Flush() error {
	if r.err != nil {
		return r.err
	}
	if err := r.commit(); err != nil {
		r.fail(err)
		return err
	}
	return nil
}

// Close commits buffered rows, marks the run finished and closes the
// database. It returns the first error seen during the run.
func (r *Recorder) Close() error {
	if r.closed {
		return r.err
	}
	r.closed = true

	var errs []error
	if r.err != nil {
		errs = append(errs, r.err)
		if r.tx != nil {
			r.tx.Rollback()
			r.tx, r.insert = nil, nil
		}
	} else if err := r.commit(); err != nil {
		errs = append(errs, err)
	}

	if _, err := r.db.Exec(
		`UPDATE runs SET end_timestamp = UNIXEPOCH('subsec'), measurement_count = ? WHERE run_id = ?`,
		r.count, r.runID,
	); err != nil {
		errs = append(errs, fmt.Errorf("finish run: %w", err))
	}
	if err := r.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Counts flushes buffered rows and returns the number of rows per channel
// for this run.
func (r *Recorder) Counts() (map[string]int, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if err := r.Flush(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(
		`SELECT channel, COUNT(*) FROM measurements WHERE run_id = ? GROUP BY channel`, r.runID)
	if err != nil {
		return nil, fmt.Errorf("recorder: count: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var channel string
		var n int
		if err := rows.Scan(&channel, &n); err != nil {
			return nil, err
		}
		counts[channel] = n
	}
	return counts, rows.Err()
}

// Rows flushes buffered rows and returns those of one channel for this
// run, in insertion order.
func (r *Recorder) Rows(channel string) ([]Row, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if err := r.Flush(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(`
		SELECT channel, t, gps_week, gps_tow, sat_id, value, cov_diag
		FROM measurements
		WHERE run_id = ? AND channel = ?
		ORDER BY id
	`, r.runID, channel)
	if err != nil {
		return nil, fmt.Errorf("recorder: query %s: %w", channel, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		var cov string
		if err := rows.Scan(&row.Channel, &row.T, &row.GPSWeek, &row.GPSTow, &row.SatID, &row.Value, &cov); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cov), &row.CovDiag); err != nil {
			return nil, fmt.Errorf("recorder: decode covariance: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// diagonal returns the diagonal of R, or nil.
func diagonal(R mat.Symmetric) []float64 {
	if R == nil {
		return nil
	}
	n := R.SymmetricDim()
	d := make([]float64, n)
	for i := range d {
		d[i] = R.At(i, i)
	}
	return d
}
