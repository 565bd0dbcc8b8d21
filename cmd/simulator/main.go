package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/multirotor-sim/core"
	"github.com/signalsfoundry/multirotor-sim/internal/config"
	"github.com/signalsfoundry/multirotor-sim/internal/control"
	"github.com/signalsfoundry/multirotor-sim/internal/logging"
	"github.com/signalsfoundry/multirotor-sim/internal/observability"
	"github.com/signalsfoundry/multirotor-sim/internal/recorder"
	"github.com/signalsfoundry/multirotor-sim/kb"
)

// options are the command-line settings of one run.
type options struct {
	configPath  string
	metricsAddr string
	dbPath      string
	progress    float64 // fraction of the horizon between progress logs
	tracing     observability.TracingConfig
}

// summary describes a finished run.
type summary struct {
	RunID     string
	Seed      int64
	Time      float64
	Steps     int64
	Landmarks int
	Waypoint  int
	Elapsed   time.Duration
}

func main() {
	configPath := flag.String("config", "", "Path to a .json or .yaml simulator configuration; built-in defaults when empty")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics; disabled when empty")
	dbPath := flag.String("db", "", "SQLite file recording every dispatched measurement; disabled when empty")
	progress := flag.Float64("progress", 0.1, "Fraction of the run between progress logs")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, err := run(ctx, options{
		configPath:  *configPath,
		metricsAddr: *metricsAddr,
		dbPath:      *dbPath,
		progress:    *progress,
		tracing:     observability.TracingConfigFromEnv(),
	}, log)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, base logging.Logger) (sum summary, err error) {
	ctx, log := logging.WithRunLogger(ctx, base)
	sum.RunID = logging.RunIDFromContext(ctx)

	tracing := opts.tracing
	tracing.RunID = sum.RunID
	shutdown, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return sum, err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	ctx, span := observability.Tracer().Start(ctx, "simulate")
	defer func() { observability.EndSpan(span, err) }()

	cfg, err := loadConfig(ctx, opts.configPath)
	if err != nil {
		return sum, err
	}
	if cfg.Sim.Seed < 0 {
		cfg.Sim.Seed = time.Now().UnixNano()
	}
	sum.Seed = cfg.Sim.Seed

	reg := prometheus.NewRegistry()
	collector, err := observability.NewSimCollector(reg)
	if err != nil {
		return sum, err
	}
	if srv := serveMetrics(opts.metricsAddr, collector, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	env := kb.NewKnowledgeBase(cfg.Environment, cfg.Sim.Seed)
	unsubscribe := env.Subscribe(func(e kb.Event) {
		log.Debug(ctx, "landmark added",
			logging.Int("id", e.Landmark.ID),
			logging.Vec("position", e.Landmark.Position),
		)
	})
	defer unsubscribe()

	ref, err := control.New(cfg, cfg.Sim.Seed, log)
	if err != nil {
		return sum, err
	}

	sim, err := core.NewSimulator(cfg, env, ref, ref, log, core.WithMetricsRecorder(collector))
	if err != nil {
		return sum, err
	}
	defer func() {
		if cerr := sim.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if opts.dbPath != "" {
		rec, rerr := recorder.Open(opts.dbPath, cfg.Sim.Seed,
			recorder.WithRunID(sum.RunID),
			recorder.WithLogger(log),
		)
		if rerr != nil {
			return sum, rerr
		}
		defer func() {
			if cerr := rec.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}()
		sim.RegisterEstimator(rec)
	}

	clock := sim.Clock()
	if opts.progress > 0 {
		next := opts.progress
		clock.AddListener(func(t float64) {
			if p := clock.Progress(); p+1e-9 >= next {
				log.Info(ctx, "progress",
					logging.Float("t", t),
					logging.Float("fraction", p),
					logging.Int("landmarks", env.Len()),
					logging.Int("waypoint", ref.CurrentWaypoint()),
				)
				for next <= p+1e-9 {
					next += opts.progress
				}
			}
		})
	}

	log.Info(ctx, "starting simulation",
		logging.Float("tmax", cfg.Sim.TMax),
		logging.Float("dt", cfg.Sim.Dt),
		logging.Any("real_time", cfg.Sim.RealTime),
	)
	start := time.Now()
	<-clock.Start(ctx, sim.Run)

	sum.Time = sim.Time()
	sum.Steps = clock.Ticks()
	sum.Landmarks = env.Len()
	sum.Waypoint = ref.CurrentWaypoint()
	sum.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.Int64("sim.steps", sum.Steps),
		attribute.Float64("sim.time", sum.Time),
		attribute.Int("sim.landmarks", sum.Landmarks),
	)
	log.Info(ctx, "simulation complete",
		logging.Float("t", sum.Time),
		logging.Any("steps", sum.Steps),
		logging.Int("landmarks", sum.Landmarks),
		logging.Any("elapsed", sum.Elapsed),
	)
	if ctx.Err() != nil && !clock.Done() {
		log.Warn(ctx, "simulation interrupted before the horizon")
	}
	return sum, nil
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	_, span := observability.Tracer().Start(ctx, "load-config")
	defer span.End()
	if path == "" {
		return config.Default(), nil
	}
	span.SetAttributes(attribute.String("config.path", path))
	return config.Load(path)
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
