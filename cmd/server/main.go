// Package main implements the entry point for the bizscan API server,
// which fronts the rate-limited Gamma and OFData providers with an
// asynchronous task queue and accounts all provider usage.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/bizscan/bizscan-api/internal/config"
	"github.com/bizscan/bizscan-api/internal/platform/logger"
)

// main wires configuration, logging, the database, migrations and the
// application together, then runs the HTTP server until shutdown.
func main() {
	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := runAppMigrations(db, appLogger); err != nil {
		appLogger.Error("Failed to apply database migrations", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		appLogger.Error("Failed to build application", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		appLogger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up structured logging.
// Returns the loaded config, the root logger, and any initialization error.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"cache_enabled", cfg.Cache.Enabled,
		"admin_endpoints", cfg.Auth.AdminKeyHash != "")

	// Presence-only logging for secrets; values never appear in logs.
	appLogger.Debug("Provider configuration",
		"gamma_key_present", cfg.Gamma.APIKey != "",
		"ofdata_key_present", cfg.OFData.APIKey != "",
		"gemini_key_present", cfg.LLM.GeminiAPIKey != "")

	return cfg, appLogger, nil
}
