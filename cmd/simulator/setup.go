package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jiri/constellation/config"
	"github.com/jiri/constellation/internal/logging"
	"github.com/jiri/constellation/internal/observability"
	"github.com/jiri/constellation/internal/telemetry"
	"github.com/jiri/constellation/scenario"
)

// session is a loaded world plus everything that must be shut down with it.
type session struct {
	cfg       *config.Config
	log       logging.Logger
	world     *scenario.World
	collector *observability.SimCollector
	recorder  *telemetry.Recorder
	manifest  string

	closers []func(context.Context)
}

func openSession(ctx context.Context, flags *rootFlags, logOut io.Writer) (context.Context, *session, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return ctx, nil, err
	}

	base := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: logOut,
	})
	ctx, log := logging.WithRunLogger(ctx, base)
	ctx = logging.ContextWithLogger(ctx, log)
	s := &session{cfg: cfg, log: log, manifest: cfg.Manual.Manifest}
	if flags.manifestPath != "" {
		s.manifest = flags.manifestPath
	}

	tracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		RunID:       logging.RunIDFromContext(ctx),
	}, log)
	if err != nil {
		return ctx, nil, fmt.Errorf("init tracing: %w", err)
	}
	s.closers = append(s.closers, func(ctx context.Context) {
		tracing.Shutdown(ctx, log)
	})

	opts := scenario.Options{
		Logger:         log,
		Tracer:         tracing.Tracer(),
		PictureSeed:    cfg.Picture.Seed,
		MaxHops:        cfg.Energy.MaxHops,
		VisitBudget:    cfg.Energy.VisitBudget,
		EarthOcclusion: cfg.Wireless.EarthOcclusion,
	}
	if cfg.Metrics.Addr != "" {
		s.collector, err = observability.NewSimCollector(prometheus.NewRegistry())
		if err != nil {
			s.close(ctx)
			return ctx, nil, fmt.Errorf("init metrics: %w", err)
		}
		opts.Metrics = s.collector
		if srv := serveMetrics(cfg.Metrics.Addr, s.collector, log); srv != nil {
			s.closers = append(s.closers, func(ctx context.Context) {
				shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			})
		}
	}
	s.world = scenario.NewWorld(opts)

	if flags.scenarioPath != "" {
		sc, err := scenario.LoadFile(flags.scenarioPath)
		if err != nil {
			s.close(ctx)
			return ctx, nil, err
		}
		sum, err := scenario.Build(s.world, sc)
		if err != nil {
			s.close(ctx)
			return ctx, nil, err
		}
		log.Info(ctx, "scenario loaded",
			logging.String("path", flags.scenarioPath),
			logging.Int("components", len(sum.Components)),
			logging.Int("cables", sum.Cables),
			logging.Int("links", sum.Links),
		)
	}

	if s.manifest != "" {
		if err := s.world.Manual.LoadFile(s.manifest); err != nil {
			s.close(ctx)
			return ctx, nil, err
		}
	}

	s.recorder, err = telemetry.Create(cfg.Telemetry.CSVPath, s.world.Universe.Registry(), s.world.Energy, log)
	if err != nil {
		s.close(ctx)
		return ctx, nil, err
	}
	if s.recorder != nil {
		s.world.Universe.RegisterTickListener(s.recorder.Observe)
		s.closers = append(s.closers, func(ctx context.Context) {
			if err := s.recorder.Close(); err != nil {
				log.Warn(ctx, "closing telemetry", logging.Err(err))
			}
		})
	}
	return ctx, s, nil
}

// close runs the shutdown hooks in reverse order.
func (s *session) close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i](ctx)
	}
	s.closers = nil
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
