package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/crash-mapper/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/crash-mapper/internal/adapter/kafka"
	"github.com/couchcryptid/crash-mapper/internal/adapter/leaflet"
	"github.com/couchcryptid/crash-mapper/internal/adapter/xlsx"
	"github.com/couchcryptid/crash-mapper/internal/config"
	"github.com/couchcryptid/crash-mapper/internal/domain"
	"github.com/couchcryptid/crash-mapper/internal/mapview"
	"github.com/couchcryptid/crash-mapper/internal/observability"
	"github.com/couchcryptid/crash-mapper/internal/pipeline"
	"github.com/couchcryptid/crash-mapper/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	sets, err := config.LoadDirectionSets(cfg.ClassifierConfig)
	if err != nil {
		logger.Error("failed to load direction sets", "error", err)
		os.Exit(1)
	}
	logger.Info("classifier configured", "north", sets.North(), "south", sets.South())

	// Publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	o := pipeline.New(
		xlsx.NewReader(logger),
		domain.NewClassifier(sets),
		mapview.NewBuilder(leaflet.NewRenderer(cfg.TileURL)),
		publisher,
		logger,
		metrics,
	)

	store := session.NewStore[*pipeline.Result](cfg.UploadCacheSize)
	srv := httpadapter.NewServer(cfg.HTTPAddr, o, store, cfg.MaxUploadBytes, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	o.Drain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
