package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/signalsfoundry/multirotor-sim/core"
	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/internal/logging"
)

func TestSimCollectorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.ObserveMeasurement(core.ChannelIMU)
	collector.ObserveMeasurement(core.ChannelIMU)
	collector.ObserveMeasurement(core.ChannelGNSS)
	collector.SetTrackedFeatures(7)
	collector.ObserveStep(0.5, 20*time.Microsecond)

	if got := testutil.ToFloat64(collector.Measurements.WithLabelValues(core.ChannelIMU)); got != 2 {
		t.Fatalf("imu measurements = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Measurements.WithLabelValues(core.ChannelGNSS)); got != 1 {
		t.Fatalf("gnss measurements = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.TrackedFeatures); got != 7 {
		t.Fatalf("sim_tracked_features = %v, want 7", got)
	}
	if got := testutil.ToFloat64(collector.SimTime); got != 0.5 {
		t.Fatalf("sim_time_seconds = %v, want 0.5", got)
	}
	if count := histogramSampleCount(t, reg, "sim_step_duration_seconds", nil); count != 1 {
		t.Fatalf("sim_step_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestSimCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}

	second.ObserveMeasurement(core.ChannelMocap)
	if got := testutil.ToFloat64(first.Measurements.WithLabelValues(core.ChannelMocap)); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestNilSimCollectorIsSafe(t *testing.T) {
	var c *SimCollector
	c.ObserveMeasurement(core.ChannelIMU)
	c.SetTrackedFeatures(1)
	c.ObserveStep(1, time.Millisecond)
}

func TestMetricsHandlerExposesSimMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.ObserveMeasurement(core.ChannelAltimeter)
	collector.SetTrackedFeatures(3)
	collector.ObserveStep(1, time.Microsecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		`sim_measurements_dispatched_total{channel="altimeter"} 1`,
		`sim_measurements_dispatched_total{channel="raw_gnss"} 0`,
		"sim_tracked_features 3",
		"sim_time_seconds 1",
		"sim_step_duration_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func TestSimCollectorDrivenBySimulator(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	cfg := config.Default()
	cfg.Sim.TMax = 1
	cfg.Camera.Enabled = false
	s, err := core.NewSimulator(cfg, nil, nil, nil, logging.Noop(), core.WithMetricsRecorder(collector))
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	for s.Run() {
	}

	if got := testutil.ToFloat64(collector.Measurements.WithLabelValues(core.ChannelIMU)); got != 250 {
		t.Fatalf("imu measurements = %v, want 250", got)
	}
	if count := histogramSampleCount(t, reg, "sim_step_duration_seconds", nil); count != 250 {
		t.Fatalf("step samples = %d, want 250", count)
	}
	if got := testutil.ToFloat64(collector.SimTime); got < 0.999 {
		t.Fatalf("sim_time_seconds = %v, want 1", got)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingStdout(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "sim-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		RunID:       "run-42",
		Writer:      &buf,
	}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "simulate")
	EndSpan(span, nil)
	_, span = Tracer().Start(context.Background(), "load-config")
	EndSpan(span, errors.New("bad config"))
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	out := buf.String()
	for _, want := range []string{"simulate", "load-config", "bad config", "run-42"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in exported spans:\n%s", want, out)
		}
	}
}

func TestInitTracingUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("InitTracing accepted an unknown exporter")
	}
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("SIM_TRACING_ENABLED", "TRUE")
	t.Setenv("SIM_TRACING_EXPORTER", "OTLP")
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "2")
	t.Setenv("SIM_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.Endpoint != "collector:4317" {
		t.Fatalf("TracingConfigFromEnv = %+v", cfg)
	}
	if cfg.ServiceName != "multirotor-sim" {
		t.Fatalf("ServiceName = %q, want default", cfg.ServiceName)
	}
	// out-of-range ratios fall back to 1
	if cfg.SampleRatio != 1 {
		t.Fatalf("SampleRatio = %v, want 1", cfg.SampleRatio)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
