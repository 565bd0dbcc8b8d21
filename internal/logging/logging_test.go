package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})
	ctx := context.Background()

	log.Info(ctx, "dropped")
	log.Warn(ctx, "kept", Int("n", 3), Float("dt", 0.004))

	recs := decodeLines(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0]["msg"] != "kept" || recs[0]["n"] != float64(3) || recs[0]["dt"] != 0.004 {
		t.Fatalf("record = %v", recs[0])
	}
}

func TestWithRunLoggerAttachesRunID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx, log := WithRunLogger(context.Background(), base)
	id := RunIDFromContext(ctx)
	if len(id) != 36 {
		t.Fatalf("run id %q is not a UUID", id)
	}
	log.Debug(ctx, "step")

	recs := decodeLines(t, &buf)
	if len(recs) != 1 || recs[0]["run_id"] != id {
		t.Fatalf("records = %v, want run_id %s", recs, id)
	}

	// an existing run id is kept
	ctx2, _ := WithRunLogger(ctx, base)
	if got := RunIDFromContext(ctx2); got != id {
		t.Fatalf("run id changed from %s to %s", id, got)
	}
}

func TestWithRunLoggerNilInputs(t *testing.T) {
	ctx, log := WithRunLogger(nil, nil)
	if ctx == nil || log == nil {
		t.Fatalf("WithRunLogger(nil, nil) = %v, %v", ctx, log)
	}
	if RunIDFromContext(ctx) == "" {
		t.Fatalf("no run id attached")
	}
}

func TestErrAndVecFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Output: &buf})
	log.Info(context.Background(), "landmark added",
		Err(errors.New("boom")),
		Vec("position", r3.Vec{X: 1, Y: -2, Z: 0.5}),
	)

	recs := decodeLines(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0]["error"] != "boom" {
		t.Fatalf("error = %v, want boom", recs[0]["error"])
	}
	pos, ok := recs[0]["position"].(map[string]any)
	if !ok || pos["x"] != 1.0 || pos["y"] != -2.0 || pos["z"] != 0.5 {
		t.Fatalf("position = %v, want {x:1 y:-2 z:0.5}", recs[0]["position"])
	}
	if Err(nil).Value != nil {
		t.Fatalf("Err(nil) = %v, want nil value", Err(nil).Value)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).Level().String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
