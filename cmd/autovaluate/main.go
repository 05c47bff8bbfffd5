package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"autovaluate/internal/cfg"
	"autovaluate/internal/common"
	"autovaluate/internal/dashboard"
	"autovaluate/internal/metrics"
	"autovaluate/internal/ml"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const modelAgeInterval = time.Minute

func main() {
	var (
		port          = flag.Int("port", 0, "Dashboard port (overrides HTTP_PORT)")
		metricsPort   = flag.Int("metrics-port", 0, "Metrics port (overrides METRICS_PORT)")
		artifactPath  = flag.String("artifacts", "", "Artifact file (overrides ARTIFACT_PATH)")
		referencePath = flag.String("reference", "", "Reference sample CSV (overrides REFERENCE_PATH)")
		logLevel      = flag.String("log-level", "", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *logLevel != "" {
		c.LogLevel = *logLevel
	}
	setupLogging(c.LogLevel)

	if *port > 0 {
		c.HTTPPort = *port
	}
	if *metricsPort > 0 {
		c.MetricsPort = *metricsPort
	}
	if *artifactPath != "" {
		c.ArtifactPath = *artifactPath
	}
	if *referencePath != "" {
		c.ReferencePath = *referencePath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	state, err := load(c, mw)
	if err != nil {
		log.Error().Err(err).Str("artifacts", c.ArtifactPath).Msg(common.ErrMsgOffline)
		state = &loaded{}
	}
	mw.SetModelLoaded(state.service != nil)

	startMetricsServer(ctx, c.MetricsPort)

	dash := dashboard.New(state.service, state.model, mw, c.HTTPPort)
	if err := dash.Start(); err != nil {
		log.Fatal().Err(err).Msg("dashboard start failed")
	}

	var wg sync.WaitGroup
	if state.predictor != nil {
		startModelAgeTicker(ctx, &wg, state.predictor)
	}

	waitForShutdown(ctx, cancel, &wg)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := dash.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("dashboard shutdown failed")
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// startMetricsServer serves Prometheus metrics until ctx is done.
func startMetricsServer(ctx context.Context, port int) {
	server := metrics.NewServer(port, prometheus.DefaultGatherer)

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()

	go func() {
		log.Info().Str("address", server.Addr).Msg("Starting metrics server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// startModelAgeTicker keeps the model age gauge current.
func startModelAgeTicker(ctx context.Context, wg *sync.WaitGroup, p *ml.Predictor) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.RefreshModelAge()

		ticker := time.NewTicker(modelAgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.RefreshModelAge()
			}
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
