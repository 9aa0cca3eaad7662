// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/clients/yahoo"
	"github.com/aristath/trellis/internal/config"
	"github.com/aristath/trellis/internal/events"
	"github.com/aristath/trellis/internal/modules/archive"
	"github.com/aristath/trellis/internal/modules/historical"
	"github.com/aristath/trellis/internal/modules/market_hours"
	"github.com/aristath/trellis/internal/modules/optimization"
	"github.com/aristath/trellis/internal/modules/trials"
	"github.com/aristath/trellis/internal/scheduler"
)

// InitializeServices creates all services and stores them in the container.
// The context is only used for setup work (S3 client construction); services
// take their own contexts per operation.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Event bus and manager - pub/sub for run progress and system events
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// NYSE trading calendar (weekends, holidays, early closes)
	container.Calendar = market_hours.NewCalendar()

	// Price store and series cache share a cgo-driver connection to the
	// history database; the wrapper connection stays for schema and status.
	historyConn, err := historical.OpenHistoryDB(cfg.DataDir + "/history.db")
	if err != nil {
		return fmt.Errorf("failed to open history database connection: %w", err)
	}
	container.HistoryConn = historyConn
	container.PriceStore = historical.NewPriceStore(historyConn, log)
	container.SeriesCache = historical.NewSeriesCache(historyConn, log)

	// Yahoo Finance daily-bar source with retry
	container.PriceSource = yahoo.NewClient(cfg.Provider.RetryAttempts, log)

	// Caching price provider: history DB first, source on miss.
	// In cache-only mode the source is never called.
	container.Provider = historical.NewProvider(
		container.Catalog,
		container.PriceSource,
		container.PriceStore,
		container.SeriesCache,
		container.Calendar,
		historical.ProviderOptions{
			MaxConcurrent: cfg.Provider.MaxConcurrent,
			CacheOnly:     cfg.Provider.CacheOnly,
		},
		log,
	)

	// Two-level tangency optimizer (within sectors, then across)
	container.Optimizer = optimization.NewOptimizer(log)

	// Trial builder (portfolio construction + HOLD/MACD backtests) and the
	// batch runner that executes trials on a worker pool
	container.Builder = trials.NewBuilder(container.Provider, container.Optimizer, log)
	container.Runner = trials.NewRunner(
		container.Builder,
		container.Trials,
		container.Catalog,
		container.EventManager,
		log,
	)

	// S3 archiver (optional - only if configured)
	if cfg.Archive.Enabled {
		store, err := archive.NewS3Store(ctx, archive.S3Config{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Prefix:    cfg.Archive.Prefix,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize s3 archive storage: %w", err)
		}
		container.Archiver = archive.NewService(
			store,
			container.ResultsDB,
			container.Trials,
			container.EventManager,
			log,
		)
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("S3 archiving enabled")
	}

	// Cron scheduler - jobs are registered by RegisterJobs
	container.Scheduler = scheduler.New(log)

	log.Info().Msg("All services initialized")

	return nil
}
