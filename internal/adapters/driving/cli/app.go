package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/archivista/lore-ingest/internal/adapters/driven/events"
	"github.com/archivista/lore-ingest/internal/adapters/driven/storage/sqlite"
	"github.com/archivista/lore-ingest/internal/config"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
	"github.com/archivista/lore-ingest/internal/core/ports/driving"
	"github.com/archivista/lore-ingest/internal/core/services"
	"github.com/archivista/lore-ingest/internal/extractors"
	"github.com/archivista/lore-ingest/internal/logger"
	"github.com/archivista/lore-ingest/internal/metrics"
)

// pipeline is the coordinator surface the commands call.
type pipeline interface {
	driving.Ingestor

	Profiles() []string
	Extractors() []string
}

// Package-level collaborators, built lazily by initApp. Tests inject mocks
// before executing a command.
var (
	appCfg        config.Config
	appLogger     *zap.Logger
	appStore      *sqlite.Store
	appSink       driven.EventSink
	appRegistry   *prometheus.Registry
	ingestService pipeline
	workStore     driven.WorkStore

	appClosers []func() error
)

// initApp builds the application from the config file. It is a no-op when
// a service is already injected.
func initApp() error {
	if ingestService != nil {
		return nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	appCfg = cfg

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, err := logger.New(cfg.Env, level)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	appLogger = log

	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	appStore = store
	workStore = store
	appClosers = append(appClosers, store.Close)

	sink, err := buildSink(cfg, log)
	if err != nil {
		return fmt.Errorf("building event sinks: %w", err)
	}
	appSink = sink

	appRegistry = prometheus.NewRegistry()

	ingestService = services.NewIngestService(
		store,
		extractors.Default(),
		sqlite.NewChunkIndex(store),
		sink,
		nil,
		log,
		metrics.NewPipeline(appRegistry),
	)
	return nil
}

// buildSink assembles the configured event sinks behind one emitter.
func buildSink(cfg config.Config, log *zap.Logger) (driven.EventSink, error) {
	var sinks []driven.EventSink
	for _, name := range cfg.Events.Sinks {
		switch name {
		case "stdout":
			sinks = append(sinks, events.NewStdoutSink())
		case "webhook":
			sink, err := events.NewWebhookSink(events.WebhookConfig{
				URL:           cfg.Events.Webhook.URL,
				Auth:          cfg.Events.Webhook.Auth,
				Timeout:       cfg.Events.Webhook.Timeout(),
				RatePerSecond: cfg.Events.Webhook.RatePerSecond,
				Burst:         cfg.Events.Webhook.Burst,
			})
			if err != nil {
				return nil, fmt.Errorf("webhook sink: %w", err)
			}
			sinks = append(sinks, sink)
		case "redis":
			sink, err := events.NewRedisSink(events.RedisConfig{
				Addrs:    cfg.Events.Redis.Addrs,
				Username: cfg.Events.Redis.Username,
				Password: cfg.Events.Redis.Password,
				DB:       cfg.Events.Redis.DB,
				Channel:  cfg.Events.Redis.Channel,
			})
			if err != nil {
				return nil, fmt.Errorf("redis sink: %w", err)
			}
			sinks = append(sinks, sink)
			appClosers = append(appClosers, func() error { sink.Close(); return nil })
		}
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return events.NewEmitter(log, sinks...), nil
}

// closeApp releases resources opened by initApp, newest first.
func closeApp() {
	for i := len(appClosers) - 1; i >= 0; i-- {
		if err := appClosers[i](); err != nil && appLogger != nil {
			appLogger.Warn("close failed", zap.Error(err))
		}
	}
	appClosers = nil
}
