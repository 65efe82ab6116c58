package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/bizscan/bizscan-api/internal/cache"
	"github.com/bizscan/bizscan-api/internal/config"
	"github.com/bizscan/bizscan-api/internal/platform/gamma"
	"github.com/bizscan/bizscan-api/internal/platform/gemini"
	"github.com/bizscan/bizscan-api/internal/platform/ofdata"
	"github.com/bizscan/bizscan-api/internal/platform/postgres"
	"github.com/bizscan/bizscan-api/internal/queue"
	"github.com/bizscan/bizscan-api/internal/service"
	"github.com/bizscan/bizscan-api/internal/service/auth"
	"github.com/bizscan/bizscan-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// redisClient is nil when the lookup cache is disabled.
	redisClient *redis.Client

	eventStore store.UsageEventStore
	jwtService auth.JWTService

	registryService service.RegistryService
	exportService   service.ExportService

	queue *queue.Manager
}

// noopRecordCache stands in for the Redis cache when caching is disabled:
// every read misses and writes are dropped.
type noopRecordCache struct{}

func (noopRecordCache) Get(ctx context.Context, kind, inn string) ([]byte, bool, error) {
	return nil, false, nil
}

func (noopRecordCache) Set(ctx context.Context, kind, inn string, payload []byte) error {
	return nil
}

// newApplication creates a new application instance with all dependencies
// initialized and the queue workers started. It accepts core dependencies
// like configuration, logger, and database connection that must be
// established before application initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.eventStore = postgres.NewPostgresUsageEventStore(db)

	ofdataClient, err := ofdata.NewClient(ofdata.Config{
		BaseURL: cfg.OFData.BaseURL,
		APIKey:  cfg.OFData.APIKey,
		Timeout: cfg.OFData.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OFData client: %w", err)
	}

	gammaClient, err := gamma.NewClient(gamma.Config{
		BaseURL:          cfg.Gamma.BaseURL,
		APIKey:           cfg.Gamma.APIKey,
		PollInterval:     cfg.Gamma.PollInterval,
		PollTimeout:      cfg.Gamma.PollTimeout,
		DefaultCardCount: cfg.Gamma.DefaultCardCount,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gamma client: %w", err)
	}

	// Enrichment is an optional feature: without a Gemini key exports run
	// unenriched. A key that fails to initialize is a config error.
	var enricher service.ReportSummarizer
	if cfg.LLM.GeminiAPIKey != "" {
		geminiEnricher, err := gemini.NewEnricher(ctx, logger, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini enricher: %w", err)
		}
		enricher = geminiEnricher
		logger.Info("Gemini enricher initialized", "model", cfg.LLM.ModelName)
	} else {
		logger.Info("No Gemini API key configured, report enrichment disabled")
	}

	recordCache, err := app.setupLookupCache(ctx)
	if err != nil {
		return nil, err
	}

	app.registryService, err = service.NewRegistryService(ofdataClient, recordCache, app.eventStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry service: %w", err)
	}

	app.exportService, err = service.NewExportService(gammaClient, enricher, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create export service: %w", err)
	}

	handlers, err := service.NewHandlers(app.registryService, app.exportService)
	if err != nil {
		return nil, fmt.Errorf("failed to build task handlers: %w", err)
	}

	app.queue, err = queue.NewManager(queueConfig(cfg.Queue), handlers, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue manager: %w", err)
	}
	app.queue.Start()
	logger.Info("Task queue started",
		"gamma_workers", cfg.Queue.Gamma.Workers,
		"ofdata_workers", cfg.Queue.OFData.Workers)

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupLookupCache connects to Redis when caching is enabled, or returns the
// no-op cache otherwise. An unreachable Redis is logged but not fatal: the
// cache degrades to misses until it recovers.
func (app *application) setupLookupCache(ctx context.Context) (service.RecordCache, error) {
	if !app.config.Cache.Enabled {
		app.logger.Info("Lookup cache disabled, registry lookups always hit the provider")
		return noopRecordCache{}, nil
	}

	app.redisClient = redis.NewClient(&redis.Options{
		Addr: app.config.Cache.RedisAddr,
	})

	lookupCache, err := cache.New(app.redisClient, app.config.Cache.LookupTTL, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}

	if err := lookupCache.Ping(ctx); err != nil {
		app.logger.Warn("Redis is unreachable, lookup cache will miss until it recovers",
			"addr", app.config.Cache.RedisAddr,
			"error", err)
	} else {
		app.logger.Info("Lookup cache connected",
			"addr", app.config.Cache.RedisAddr,
			"ttl", lookupCache.TTL())
	}

	return lookupCache, nil
}

// queueConfig maps the per-provider configuration onto the queue's
// per-category settings. Both categories of a provider share its worker
// pool size, rate windows and daily quota.
func queueConfig(cfg config.QueueConfig) queue.Config {
	gammaSettings := queue.CategorySettings{
		Workers:       cfg.Gamma.Workers,
		RatePerMinute: cfg.Gamma.RatePerMinute,
		RatePerHour:   cfg.Gamma.RatePerHour,
		DailyQuota:    cfg.Gamma.DailyQuota,
	}
	ofdataSettings := queue.CategorySettings{
		Workers:       cfg.OFData.Workers,
		RatePerMinute: cfg.OFData.RatePerMinute,
		RatePerHour:   cfg.OFData.RatePerHour,
		DailyQuota:    cfg.OFData.DailyQuota,
	}

	return queue.Config{
		Categories: map[queue.TaskCategory]queue.CategorySettings{
			queue.CategoryGammaPDF:      gammaSettings,
			queue.CategoryGammaPPTX:     gammaSettings,
			queue.CategoryOFDataCompany: ofdataSettings,
			queue.CategoryOFDataPerson:  ofdataSettings,
		},
		PollInterval:    cfg.PollInterval,
		CleanupInterval: cfg.CleanupInterval,
		Retention:       cfg.Retention,
		MaxRetries:      cfg.MaxRetries,
	}
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	// Stop the queue first so no worker touches the database or Redis
	// after their connections are closed.
	if app.queue != nil {
		app.queue.Stop()
	}

	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("Error closing Redis connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
