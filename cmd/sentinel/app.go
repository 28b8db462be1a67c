package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/couchcryptid/seismic-sentinel/internal/adapter/csvstore"
	"github.com/couchcryptid/seismic-sentinel/internal/adapter/jsonexport"
	kafkaadapter "github.com/couchcryptid/seismic-sentinel/internal/adapter/kafka"
	"github.com/couchcryptid/seismic-sentinel/internal/adapter/kandilli"
	"github.com/couchcryptid/seismic-sentinel/internal/config"
	"github.com/couchcryptid/seismic-sentinel/internal/observability"
	"github.com/couchcryptid/seismic-sentinel/internal/pipeline"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	pipeline *pipeline.Pipeline
	closers  []io.Closer
}

func newApp(cfg *config.Config, reportOut io.Writer) *app {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	exporters := []pipeline.Exporter{jsonexport.New(cfg.JSONPath)}
	var closers []io.Closer
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		exporters = append(exporters, writer)
		closers = append(closers, writer)
		logger.Info("kafka record publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(
		kandilli.NewClient(cfg, logger),
		csvstore.New(cfg.CSVPath),
		reportOut,
		logger,
		metrics,
		exporters...,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		pipeline: p,
		closers:  closers,
	}
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
