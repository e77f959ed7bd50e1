package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	rchan "github.com/rchanio/rchan/internal"
	"github.com/rchanio/rchan/internal/board"
	"github.com/rchanio/rchan/internal/cache"
	"github.com/rchanio/rchan/internal/circuitbreaker"
	"github.com/rchanio/rchan/internal/config"
	"github.com/rchanio/rchan/internal/httpclient"
	"github.com/rchanio/rchan/internal/ratelimit"
	"github.com/rchanio/rchan/internal/server"
	"github.com/rchanio/rchan/internal/stream"
	"github.com/rchanio/rchan/internal/telemetry"
	"github.com/rchanio/rchan/internal/worker"
	"go.opentelemetry.io/otel/trace"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting rchan", "version", version, "addr", cfg.Server.Addr)

	// Shared DNS cache for the single upstream host.
	dnsResolver := &dnscache.Resolver{}
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for range t.C {
			dnsResolver.Refresh(true)
		}
	}()

	transport := httpclient.NewUpstreamTransport(dnsResolver)
	httpClient := &http.Client{Transport: transport}

	limiter := ratelimit.New(cfg.RateLimit.Permits, cfg.RateLimit.Window)
	slog.Info("rate limiter configured", "permits", cfg.RateLimit.Permits, "window", cfg.RateLimit.Window)

	cacheActor := cache.NewWithTTL(cfg.Cache.TTL)

	// Prometheus metrics. Built up front since the client, board workers,
	// and stream supervisor all attach it via WithMetrics once available.
	var metrics *telemetry.Metrics
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		promRegistry := prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		promRegistry.MustRegister(collectors.NewGoCollector())
		metrics = telemetry.NewMetrics(promRegistry)
		metricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
		slog.Info("prometheus metrics enabled")
	}

	client := httpclient.New(httpClient, limiter, cacheActor, httpclient.Config{
		UseHTTPS:   cfg.Upstream.UseHTTPS,
		MaxRetries: cfg.Upstream.MaxRetries,
	}).WithMetrics(metrics)

	var breakers *circuitbreaker.Registry
	if cfg.Breaker.Enabled {
		breakers = circuitbreaker.NewRegistry(circuitbreaker.Config{
			ErrorThreshold: cfg.Breaker.ErrorThreshold,
			MinSamples:     cfg.Breaker.MinSamples,
			WindowSeconds:  cfg.Breaker.WindowSeconds,
			OpenTimeout:    cfg.Breaker.OpenTimeout,
		})
		slog.Info("circuit breaker enrichment enabled",
			"error_threshold", cfg.Breaker.ErrorThreshold,
			"min_samples", cfg.Breaker.MinSamples,
		)
	}

	factory := func(boardName string, refresh time.Duration, events chan<- rchan.Event, breaker *circuitbreaker.Breaker) stream.Runnable {
		return board.New(boardName, client, breaker, events, refresh).WithMetrics(metrics)
	}
	sup := stream.New(factory, breakers).WithMetrics(metrics)

	ctx := context.Background()
	boards, err := client.Boards(ctx)
	if err != nil {
		return err
	}
	sup.SetKnownBoards(boards)
	slog.Info("fetched known boards", "count", len(boards))

	if err := config.Bootstrap(ctx, cfg, sup); err != nil {
		return err
	}
	for _, b := range cfg.Boards {
		slog.Info("board subscribed", "board", b.Name, "refresh_rate_ms", b.RefreshRateMs)
	}

	// OpenTelemetry tracing.
	var tracer trace.Tracer
	var tracingShutdown func(context.Context) error
	if cfg.Telemetry.Tracing.Enabled {
		endpoint := cfg.Telemetry.Tracing.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		sampleRate := cfg.Telemetry.Tracing.SampleRate
		if sampleRate == 0 {
			sampleRate = 0.1
		}
		shutdown, err := telemetry.SetupTracing(ctx, endpoint, sampleRate)
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			tracer = telemetry.Tracer("rchan/server")
			slog.Info("opentelemetry tracing enabled", "endpoint", endpoint, "sample_rate", sampleRate)
		}
	}

	handler := server.New(server.Deps{
		Events:         sup,
		MetricsHandler: metricsHandler,
		Tracer:         tracer,
		ReadyCheck: func(ctx context.Context) error {
			if sup.SubscribedCount() == 0 {
				return errors.New("no boards subscribed")
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// Background workers: the response cache actor and, if circuit
	// breaker enrichment is enabled, its periodic stale-breaker sweep.
	workers := []worker.Worker{cacheActor}
	if breakers != nil {
		workers = append(workers, worker.NewBreakerSweepWorker(breakers, time.Hour))
	}
	runner := worker.NewRunner(workers...)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- runner.Run(workerCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("rchan ready", "addr", cfg.Server.Addr, "boards", len(cfg.Boards))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		workerCancel()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		workerCancel()
		return err
	}

	workerCancel()
	if err := <-workerDone; err != nil {
		slog.Error("worker shutdown error", "error", err)
	}

	if tracingShutdown != nil {
		if err := tracingShutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}

	slog.Info("rchan stopped")
	return nil
}
