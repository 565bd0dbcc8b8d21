package core

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/signalsfoundry/multirotor-sim/model"
)

// TruthRecord is one row of the ground-truth log.
type TruthRecord struct {
	T     float64
	State model.State
}

// truthRecordSize is the number of float64 values per record.
const truthRecordSize = 1 + model.StateSize

// TruthLog writes little-endian float64 records of (t, State.Array()).
type TruthLog struct {
	w *bufio.Writer
	c io.Closer
}

// NewTruthLog writes records to w. Close flushes but does not close w.
func NewTruthLog(w io.Writer) *TruthLog {
	return &TruthLog{w: bufio.NewWriter(w)}
}

// CreateTruthLog creates (or truncates) the log file at path, creating
// parent directories as needed.
func CreateTruthLog(path string) (*TruthLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("CreateTruthLog: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("CreateTruthLog: %w", err)
	}
	return &TruthLog{w: bufio.NewWriter(f), c: f}, nil
}

// Write appends one record.
func (l *TruthLog) Write(t float64, x model.State) error {
	var rec [truthRecordSize]float64
	rec[0] = t
	a := x.Array()
	copy(rec[1:], a[:])
	return binary.Write(l.w, binary.LittleEndian, rec)
}

// Close flushes buffered records and closes the underlying file, if any.
func (l *TruthLog) Close() error {
	err := l.w.Flush()
	if l.c != nil {
		err = errors.Join(err, l.c.Close())
	}
	return err
}

// ReadTruthLog decodes every record from r. A trailing partial record is an
// error.
func ReadTruthLog(r io.Reader) ([]TruthRecord, error) {
	br := bufio.NewReader(r)
	var out []TruthRecord
	for {
		var rec [truthRecordSize]float64
		err := binary.Read(br, binary.LittleEndian, &rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("ReadTruthLog: record %d: %w", len(out), err)
		}
		var a [model.StateSize]float64
		copy(a[:], rec[1:])
		out = append(out, TruthRecord{T: rec[0], State: model.StateFromArray(a)})
	}
}
