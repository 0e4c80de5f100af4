package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/firesync/internal/adapter/http"
	"github.com/couchcryptid/firesync/internal/adapter/feed"
	kafkaadapter "github.com/couchcryptid/firesync/internal/adapter/kafka"
	"github.com/couchcryptid/firesync/internal/adapter/predictor"
	"github.com/couchcryptid/firesync/internal/config"
	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/mapsync"
	"github.com/couchcryptid/firesync/internal/normalize"
	"github.com/couchcryptid/firesync/internal/observability"
	"github.com/couchcryptid/firesync/internal/pipeline"
	"github.com/couchcryptid/firesync/internal/prediction"
	"github.com/couchcryptid/firesync/internal/surface/memory"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var pluginDelay time.Duration

func addServeCmd(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the map session with the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&pluginDelay, "plugin-delay", 0, "Simulated load time of the density rendering plugin")
	root.AddCommand(cmd)
}

func serve(parent context.Context) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	surface := memory.New(logger)
	synchronizer := mapsync.New(surface, memory.Plugin{Delay: pluginDelay}, logger, metrics)
	if err := synchronizer.Init(ctx); err != nil {
		return fmt.Errorf("init map synchronizer: %w", err)
	}
	defer synchronizer.Dispose()

	feeds := pipeline.Feeds{
		IncidentURL: cfg.IncidentFeedURL,
		HotspotURLs: make(map[domain.Provider]string),
	}
	hotspotURLs := map[domain.Provider]string{
		domain.ProviderVIIRS: cfg.VIIRSFeedURL,
		domain.ProviderMODIS: cfg.MODISFeedURL,
	}
	var hotspotSources []normalize.HotspotSource
	for _, p := range domain.Providers() {
		url := hotspotURLs[p]
		if url == "" {
			logger.Info("hotspot provider disabled", "provider", p)
			continue
		}
		src, _ := normalize.HotspotSourceFor(p, cfg.MODISConfidenceFloor)
		feeds.HotspotURLs[p] = url
		hotspotSources = append(hotspotSources, src)
	}
	transformer := pipeline.NewTransformer(normalize.WFIGSIncidents(cfg.IncidentWindow), hotspotSources, logger)

	opts := pipeline.Options{
		Feeds:          feeds,
		ClearOnFailure: cfg.ClearOnFailure(),
		Sinks:          []pipeline.EventSink{pipeline.LogSink{Logger: logger}},
	}

	var writer *kafkaadapter.Writer
	if cfg.SinkEnabled() {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaEventsTopic, logger)
		opts.Sinks = append(opts.Sinks, writer)
		logger.Info("kafka event sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
	}

	if cfg.PredictionsEnabled() {
		client := predictor.NewClient(cfg.PredictionBaseURL, cfg.FeedTimeout, logger)
		opts.Predictions = &pipeline.Predictions{
			Cache:  prediction.NewAvailabilityCache(client, logger, metrics),
			Source: client,
		}
		logger.Info("prediction overlays enabled", "base_url", cfg.PredictionBaseURL)
	} else {
		logger.Info("prediction overlays disabled")
	}

	fetcher := feed.NewClient(cfg.FeedTimeout, cfg.FeedRetries, logger)
	p := pipeline.New(fetcher, transformer, synchronizer, opts, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, surface, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the session loop.
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("pipeline error", "error", err)
		}
	}()

	if err := p.Schedule(ctx, cfg.RefreshSchedule); err != nil {
		logger.Error("refresh schedule error", "error", err)
	}
	if _, err := p.Refresh(); err != nil {
		logger.Error("initial refresh failed", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-runDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
