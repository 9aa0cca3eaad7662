// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/modules/trials"
	"github.com/aristath/trellis/internal/modules/universe"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Security catalog repository (needs universeDB)
	container.Catalog = universe.NewCatalogRepository(container.UniverseDB, log)

	// Trials repository (needs resultsDB) - runs, trials and batch summaries
	container.Trials = trials.NewRepository(container.ResultsDB, log)

	log.Info().Msg("All repositories initialized")

	return nil
}
