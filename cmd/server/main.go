// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

// Package main is the entry point for the epitrack server.
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, config.yaml and environment (Koanf v2)
//  2. Logging: zerolog with the configured level and format
//  3. Database: DuckDB (embedded) or PostgreSQL through pgx
//  4. Phrase import: the keywords CSV, when configured
//  5. Sync manager: bulletin, trends and adplatform adapters
//  6. HTTP server: chi router on Server.Host:Server.Port
//  7. Supervisor tree: runs the sync, import and HTTP services
//
// SIGINT and SIGTERM cancel the root context; the supervisor stops every
// service and the database is closed last.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/epitrack/internal/api"
	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/database"
	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/supervisor"
	"github.com/tomtom215/epitrack/internal/supervisor/services"
	"github.com/tomtom215/epitrack/internal/sync"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("epitrack stopped with an error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		// Default logger: config not yet available.
		logging.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", api.Version).
		Str("db_driver", cfg.Database.Driver).
		Bool("bulletin", cfg.Bulletin.Enabled).
		Bool("trends", cfg.Trends.Enabled).
		Bool("adplatform", cfg.AdPlatform.Enabled).
		Msg("Starting epitrack")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("driver", db.Driver()).Msg("Database initialized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	importer, closeImport, err := initPhraseImport(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeImport()

	orch := sync.NewOrchestratorFromConfig(cfg, db, nil)
	syncManager := sync.NewManager(orch, cfg, nil)

	handler := api.NewHandler(db, syncManager, cfg)
	defer handler.Close()
	syncManager.SetOnSyncCompleted(handler.OnSyncCompleted)

	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(&cfg.Security))
	server := api.NewHTTPServer(&cfg.Server, router.SetupChi())

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		return err
	}

	tree.AddSyncService(services.NewSyncService(syncManager))
	if importer != nil {
		tree.AddSyncService(services.NewImportService(importer, cfg.Import.RecheckInterval))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")

	err = tree.Serve(ctx)

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
