package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/multirotor-sim/core"
)

// SimCollector bundles the Prometheus metrics of a simulation run. It
// implements core.MetricsRecorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Measurements    *prometheus.CounterVec
	TrackedFeatures prometheus.Gauge
	SimTime         prometheus.Gauge
	StepDuration    prometheus.Histogram
}

var _ core.MetricsRecorder = (*SimCollector)(nil)

// NewSimCollector registers simulator metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	measurements, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_measurements_dispatched_total",
		Help: "Measurements delivered to estimators, labeled by channel.",
	}, []string{"channel"}))
	if err != nil {
		return nil, fmt.Errorf("NewSimCollector: %w", err)
	}
	// Every channel is exported from the start, disabled ones stay at zero.
	for _, ch := range core.Channels {
		measurements.WithLabelValues(ch)
	}

	tracked, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_tracked_features",
		Help: "Number of features tracked by the camera at its last capture.",
	}))
	if err != nil {
		return nil, fmt.Errorf("NewSimCollector: %w", err)
	}
	simTime, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_time_seconds",
		Help: "Simulated time reached by the run.",
	}))
	if err != nil {
		return nil, fmt.Errorf("NewSimCollector: %w", err)
	}
	steps, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_step_duration_seconds",
		Help:    "Wall-clock time spent computing one simulation step.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 9),
	}))
	if err != nil {
		return nil, fmt.Errorf("NewSimCollector: %w", err)
	}

	return &SimCollector{
		gatherer:        gatherer,
		Measurements:    measurements,
		TrackedFeatures: tracked,
		SimTime:         simTime,
		StepDuration:    steps,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveMeasurement counts one delivered measurement.
func (c *SimCollector) ObserveMeasurement(channel string) {
	if c == nil || c.Measurements == nil {
		return
	}
	c.Measurements.WithLabelValues(channel).Inc()
}

// SetTrackedFeatures updates the tracked feature gauge.
func (c *SimCollector) SetTrackedFeatures(n int) {
	if c == nil || c.TrackedFeatures == nil {
		return
	}
	c.TrackedFeatures.Set(float64(n))
}

// ObserveStep records the simulated time and the cost of one step.
func (c *SimCollector) ObserveStep(t float64, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.SimTime != nil {
		c.SimTime.Set(t)
	}
	if c.StepDuration != nil {
		c.StepDuration.Observe(elapsed.Seconds())
	}
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, err
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("metric already registered as %T", are.ExistingCollector)
	}
	return existing, nil
}
