/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/marinara/internal/bootstrap"
	"github.com/friendsincode/marinara/internal/catalog"
	"github.com/friendsincode/marinara/internal/config"
	"github.com/friendsincode/marinara/internal/eviction"
	"github.com/friendsincode/marinara/internal/fetch"
	"github.com/friendsincode/marinara/internal/logbuffer"
	"github.com/friendsincode/marinara/internal/logging"
	"github.com/friendsincode/marinara/internal/playlist"
	"github.com/friendsincode/marinara/internal/playout"
	"github.com/friendsincode/marinara/internal/probe"
	"github.com/friendsincode/marinara/internal/queue"
	"github.com/friendsincode/marinara/internal/render"
	"github.com/friendsincode/marinara/internal/telemetry"
)

const version = "0.1.0"

var (
	logger zerolog.Logger
	cfg    *config.Config
	logs   *logbuffer.Buffer
)

var rootCmd = &cobra.Command{
	Use:   "marinara",
	Short: "Marinara - Pre-rendered segment buffer for unattended live streams",
	Long:  "Marinara keeps a disk-bounded buffer of fully rendered video segments ahead of a live stream consumer, so playback survives upstream outages.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the render loop",
	Long:  "Bootstrap assets, recover buffer state from storage and run the render, playlist and eviction loops",
	RunE:  runServe,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Inspect committed segments on storage",
	Long:  "Probe every committed segment in the media path, drop unplayable files and print the recovered queue as JSON",
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	// A missing .env is fine; the environment may be fully populated already.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logs = logbuffer.New(10000)
	logger = logging.Setup(cfg.Environment, cfg.InstanceID, logbuffer.NewWriter(logs))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version).Msg("marinara starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "marinara",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boot := bootstrap.New(cfg, logger)
	if err := boot.Run(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	manifest, err := eviction.LoadManifest(cfg.SweepManifestPath)
	if err != nil {
		return fmt.Errorf("load sweep manifest: %w", err)
	}

	metrics := telemetry.NewMetrics()
	prober := probe.NewFFProbe(cfg.FFprobeBin, logger)
	state := queue.NewState(logger)
	selector := catalog.NewSelector(cfg)
	quality := render.NewQuality(cfg.TargetSpeedMultiplier)

	writer, err := playlist.NewWriter(cfg.MediaPath, cfg.PlaylistRotateEntries, logger)
	if err != nil {
		return fmt.Errorf("attach playlist chain: %w", err)
	}

	director := playout.New(
		cfg,
		catalog.NewResolver(cfg, logger),
		selector,
		fetch.New(cfg, selector, logger),
		render.New(cfg, prober, quality, boot.FontPath(), logger),
		state,
		queue.NewGovernor(cfg),
		queue.NewScanner(cfg, prober, logger),
		writer,
		metrics,
		logger,
	)

	evictor := eviction.NewManager(cfg, state, eviction.StatfsUsage{}, manifest, cfg.TempPath, writer, metrics, logger)
	go evictor.Run(ctx)

	watcher := queue.NewWatcher(cfg.MediaPath, state, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("storage watcher stopped")
		}
	}()

	mux := chi.NewRouter()
	mux.Mount("/", metrics.Handler())
	mux.Mount("/debug", logs.Handler())

	metricsServer := &http.Server{
		Addr:        cfg.MetricsBind,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.MetricsBind).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("metrics server error")
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- director.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully...")
	case err := <-runErr:
		if err != nil {
			logger.Error().Err(err).Msg("render loop failed")
			cancel()
			shutdownMetrics(metricsServer)
			return err
		}
	}

	cancel()

	shutdownMetrics(metricsServer)
	logger.Info().Msg("marinara stopped")
	return nil
}

func shutdownMetrics(srv *http.Server) {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("metrics shutdown failed")
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	prober := probe.NewFFProbe(cfg.FFprobeBin, logger)
	scanner := queue.NewScanner(cfg, prober, logger)

	segments, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan media path: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(segments)
}
