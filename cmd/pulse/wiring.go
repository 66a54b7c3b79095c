package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tradingpro/pulse/internal/archive"
	"github.com/tradingpro/pulse/internal/config"
	"github.com/tradingpro/pulse/internal/generator"
	"github.com/tradingpro/pulse/internal/lifecycle"
	"github.com/tradingpro/pulse/internal/llm/factory"
	"github.com/tradingpro/pulse/internal/metrics"
	"github.com/tradingpro/pulse/internal/scoring"
	"github.com/tradingpro/pulse/internal/storage/article"
	"github.com/tradingpro/pulse/internal/storage/delivery"
	"github.com/tradingpro/pulse/internal/storage/market"
	signalstore "github.com/tradingpro/pulse/internal/storage/signal"
	"github.com/tradingpro/pulse/internal/storage/subscriber"
	"github.com/tradingpro/pulse/internal/webhook"
)

// runtime bundles the wired collaborators shared by the subcommands.
type runtime struct {
	cfg *config.Config
	log *zap.Logger

	markets     *market.MemoryStore
	articles    *article.MemoryStore
	signals     signalstore.Store
	subscribers subscriber.Store
	deliveries  delivery.Store

	registry  *metrics.Registry
	scorer    *scoring.Scorer
	generator *generator.Generator
	lifecycle *lifecycle.Manager
	webhooks  *webhook.Engine
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// buildRuntime wires every collaborator from the config. Quotes, bars
// and articles are held in memory; signals and deliveries follow the
// configured storage driver.
func buildRuntime(cfg *config.Config, log *zap.Logger) (*runtime, error) {
	rt := &runtime{
		cfg:         cfg,
		log:         log,
		markets:     market.NewMemoryStore(),
		articles:    article.NewMemoryStore(),
		subscribers: subscriber.NewMemoryStore(),
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		signals, err := signalstore.NewSQLiteStore(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening signal store: %w", err)
		}
		deliveries, err := delivery.NewSQLiteStore(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening delivery store: %w", err)
		}
		rt.signals = signals
		rt.deliveries = deliveries
	default:
		rt.signals = signalstore.NewMemoryStore()
		rt.deliveries = delivery.NewMemoryStore()
	}

	if cfg.Metrics.Enabled {
		rt.registry = metrics.NewRegistry()
	}

	provider, err := factory.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if provider == nil {
		log.Warn("no LLM provider configured, news scoring degrades to defaults")
	}

	scoringOpts := []scoring.Option{scoring.WithLogger(log)}
	if cfg.LLM.Timeout > 0 {
		scoringOpts = append(scoringOpts, scoring.WithTimeout(cfg.LLM.Timeout))
	}
	if rt.registry != nil {
		scoringOpts = append(scoringOpts, scoring.WithMetrics(rt.registry))
	}
	rt.scorer = scoring.New(provider, cfg.Scoring.CacheTTL, scoringOpts...)

	rt.generator = generator.New(rt.markets, rt.articles, rt.signals, rt.scorer, generator.Params{
		ArticleWindow: time.Duration(cfg.Signals.ArticleWindowDays) * 24 * time.Hour,
		ArticleLimit:  cfg.Signals.ArticleLimit,
		HistoryDays:   cfg.Signals.HistoryDays,
		ExpiryWindow:  cfg.Signals.ExpiryWindow,
	}, log).WithMetrics(rt.registry)

	archiver, err := buildArchiver(cfg.Archive)
	if err != nil {
		return nil, err
	}
	rt.lifecycle = lifecycle.New(rt.signals, archiver, log)

	backoff := make([]time.Duration, 0, len(cfg.Delivery.BackoffSecs))
	for _, secs := range cfg.Delivery.BackoffSecs {
		backoff = append(backoff, time.Duration(secs)*time.Second)
	}
	rt.webhooks = webhook.New(rt.deliveries, rt.subscribers, rt.signals, rt.articles, webhook.Options{
		MaxAttempts: cfg.Delivery.MaxAttempts,
		Backoff:     backoff,
		Timeout:     cfg.Delivery.Timeout,
	}, log, rt.registry)

	return rt, nil
}

func buildArchiver(cfg config.ArchiveConfig) (*archive.SignalArchiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Type {
	case "localfs":
		storage, err := archive.NewLocalFS(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("creating localfs archive: %w", err)
		}
		return archive.NewSignalArchiver(storage), nil
	case "s3":
		storage, err := archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("creating s3 archive: %w", err)
		}
		return archive.NewSignalArchiver(storage), nil
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
