// Package main is the entry point for the trellis experiment service.
// It serves the HTTP API over stored runs and trials, streams run progress
// over SSE, and executes cron-scheduled experiment batches.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/trellis/internal/config"
	"github.com/aristath/trellis/internal/di"
	"github.com/aristath/trellis/internal/server"
	"github.com/aristath/trellis/pkg/logger"
)

// main orchestrates the startup sequence:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires all dependencies via the DI container (databases, repositories,
//    services, scheduled jobs) and seeds the security catalog on first run
// 4. Starts the HTTP server and, when jobs are configured, the scheduler
// 5. Waits for SIGINT/SIGTERM and performs graceful shutdown
//
// The application uses a 3-database architecture:
// - universe.db: security catalog (GICS sectors, constituents)
// - results.db: experiment record (runs, trials, summaries)
// - history.db: daily price bars and cached return series
func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting trellis")

	// Batch context: API-started and scheduled batches run on this context
	// rather than any request context, so they survive the request but stop
	// with the process. Cancelling it marks in-flight runs failed.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire all dependencies using the DI container
	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Cleanup databases on exit so WAL checkpoints are written
	defer container.UniverseDB.Close()
	defer container.ResultsDB.Close()
	defer container.HistoryDB.Close()
	defer container.HistoryConn.Close()

	// Initialize HTTP server with container services
	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		DataDir:      cfg.DataDir,
		UniverseDB:   container.UniverseDB,
		ResultsDB:    container.ResultsDB,
		HistoryDB:    container.HistoryDB,
		Runner:       container.Runner,
		Repo:         container.Trials,
		Archiver:     container.Archiver,
		Catalog:      container.Catalog,
		Provider:     container.Provider,
		PriceStore:   container.PriceStore,
		Calendar:     container.Calendar,
		EventBus:     container.EventBus,
		EventManager: container.EventManager,
		Defaults:     cfg.Experiment,
		BatchCtx:     ctx,
	})

	// Start server in goroutine so the scheduler can start concurrently
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Start the scheduler when jobs are registered (SCHEDULE_SPEC batches,
	// nightly archive)
	if jobs.Any() {
		container.Scheduler.Start()
		log.Info().Msg("Scheduler started")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Abort in-flight batches; the runner marks their runs failed
	cancel()

	// Stop the scheduler and wait for running jobs to return
	if jobs.Any() {
		container.Scheduler.Stop()
	}

	// Graceful shutdown: up to 10 seconds for in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
