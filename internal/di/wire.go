// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/config"
	"github.com/aristath/trellis/internal/modules/universe"
)

// Wire initializes all dependencies and returns a fully configured container.
// This is the main entry point for dependency injection.
// Order of operations:
// 1. Open databases and apply schemas
// 2. Create repositories and seed the security catalog if empty
// 3. Create services
// 4. Register scheduled jobs (the scheduler itself is started by the caller)
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	// Step 1: Open databases
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: Create repositories
	if err := InitializeRepositories(container, log); err != nil {
		// Cleanup databases on error
		container.UniverseDB.Close()
		container.ResultsDB.Close()
		container.HistoryDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	// Seed the security catalog from the embedded constituents file on first
	// run; an already-populated catalog is left untouched.
	if err := universe.EnsureSeeded(ctx, container.Catalog, log); err != nil {
		container.UniverseDB.Close()
		container.ResultsDB.Close()
		container.HistoryDB.Close()
		return nil, nil, fmt.Errorf("failed to seed security catalog: %w", err)
	}

	// Step 3: Create services
	if err := InitializeServices(ctx, container, cfg, log); err != nil {
		// Cleanup on error; the history connection may already be open
		if container.HistoryConn != nil {
			container.HistoryConn.Close()
		}
		container.UniverseDB.Close()
		container.ResultsDB.Close()
		container.HistoryDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Step 4: Register scheduled jobs
	jobs, err := RegisterJobs(ctx, container, cfg, log)
	if err != nil {
		// Cleanup on error
		container.HistoryConn.Close()
		container.UniverseDB.Close()
		container.ResultsDB.Close()
		container.HistoryDB.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed")

	return container, jobs, nil
}
