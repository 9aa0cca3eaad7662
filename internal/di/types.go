// Package di provides dependency injection type definitions.
//
// This package defines the Container type which holds all application
// dependencies. The Container is the single source of truth for service
// instances and is handed to the server and CLI entry points.
package di

import (
	"database/sql"

	"github.com/aristath/trellis/internal/database"
	"github.com/aristath/trellis/internal/events"
	"github.com/aristath/trellis/internal/modules/archive"
	"github.com/aristath/trellis/internal/modules/historical"
	"github.com/aristath/trellis/internal/modules/market_hours"
	"github.com/aristath/trellis/internal/modules/optimization"
	"github.com/aristath/trellis/internal/modules/trials"
	"github.com/aristath/trellis/internal/modules/universe"
	"github.com/aristath/trellis/internal/scheduler"
)

// Container holds all dependencies for the application.
//
// It is created by Wire() in four steps: databases, repositories, services,
// scheduled jobs. All dependencies are injected via constructor injection;
// nothing reaches for globals.
type Container struct {
	// Databases (3-database architecture)
	// Each database uses SQLite with WAL mode and profile-specific PRAGMAs.
	UniverseDB *database.DB // Security catalog (GICS sectors, constituents)
	ResultsDB  *database.DB // Experiment record (runs, trials, summaries)
	HistoryDB  *database.DB // Daily price bars and cached return series

	// HistoryConn is a second connection to history.db on the cgo driver;
	// the price store and series cache run their write batches on it.
	HistoryConn *sql.DB

	// Clients - external API integrations
	PriceSource historical.Source // Yahoo Finance daily-bar downloads

	// Repositories - data access layer
	Catalog *universe.CatalogRepository // Security catalog queries
	Trials  *trials.Repository          // Run, trial and summary persistence

	// Services - business logic layer
	Calendar     *market_hours.Calendar  // NYSE trading calendar
	PriceStore   *historical.PriceStore  // Daily bar persistence
	SeriesCache  *historical.SeriesCache // Assembled return-series cache
	Provider     *historical.Provider    // Caching price-series provider
	Optimizer    *optimization.Optimizer // Two-level tangency optimization
	Builder      *trials.Builder         // Single-trial construction and backtest
	Runner       *trials.Runner          // Batch execution on a worker pool
	Archiver     *archive.Service        // Results archiving to S3 (nil unless enabled)
	Scheduler    *scheduler.Scheduler    // Cron-driven background jobs
	EventBus     *events.Bus             // Event bus for pub/sub
	EventManager *events.Manager         // Event manager (wraps bus)
}
