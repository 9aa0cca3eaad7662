// Package server provides the HTTP server and routing for trellis.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/database"
	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/events"
	"github.com/aristath/trellis/internal/modules/archive"
	"github.com/aristath/trellis/internal/modules/historical"
	historicalhandlers "github.com/aristath/trellis/internal/modules/historical/handlers"
	"github.com/aristath/trellis/internal/modules/market_hours"
	calendarhandlers "github.com/aristath/trellis/internal/modules/market_hours/handlers"
	"github.com/aristath/trellis/internal/modules/trials"
	"github.com/aristath/trellis/internal/modules/universe"
	universehandlers "github.com/aristath/trellis/internal/modules/universe/handlers"
)

// Config holds the server's dependencies and settings.
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool
	DataDir string

	UniverseDB *database.DB
	ResultsDB  *database.DB
	HistoryDB  *database.DB

	Runner *trials.Runner
	Repo   *trials.Repository

	// Archiver may be nil; POST /api/archive then answers 503.
	Archiver *archive.Service

	// Catalog, Provider and Calendar may be nil; their route groups are not
	// mounted.
	Catalog    *universe.CatalogRepository
	Provider   *historical.Provider
	PriceStore *historical.PriceStore
	Calendar   *market_hours.Calendar

	EventBus     *events.Bus
	EventManager *events.Manager

	// Defaults is the base experiment configuration; POST /api/runs bodies
	// override individual fields.
	Defaults domain.ExperimentConfig

	// BatchCtx bounds the lifetime of batches started through the API, so
	// they stop with the process rather than with the request. Nil means
	// context.Background().
	BatchCtx context.Context
}

// Server is the trellis HTTP server.
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	dataDir    string
	universeDB *database.DB
	resultsDB  *database.DB
	historyDB  *database.DB

	runsHandlers    *RunsHandlers
	systemHandlers  *SystemHandlers
	archiveHandlers *ArchiveHandlers
	eventsStream    *EventsStreamHandler

	catalog    *universe.CatalogRepository
	provider   *historical.Provider
	priceStore *historical.PriceStore
	calendar   *market_hours.Calendar
	events     *events.Manager
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	batchCtx := cfg.BatchCtx
	if batchCtx == nil {
		batchCtx = context.Background()
	}

	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		dataDir:    cfg.DataDir,
		universeDB: cfg.UniverseDB,
		resultsDB:  cfg.ResultsDB,
		historyDB:  cfg.HistoryDB,
		catalog:    cfg.Catalog,
		provider:   cfg.Provider,
		priceStore: cfg.PriceStore,
		calendar:   cfg.Calendar,
		events:     cfg.EventManager,
	}

	s.runsHandlers = NewRunsHandlers(cfg.Runner, cfg.Repo, cfg.Defaults, batchCtx, cfg.Log)
	s.systemHandlers = NewSystemHandlers(cfg.DataDir, cfg.UniverseDB, cfg.ResultsDB, cfg.HistoryDB, cfg.Log)
	s.archiveHandlers = NewArchiveHandlers(cfg.Archiver, cfg.Log)
	if cfg.EventBus != nil {
		s.eventsStream = NewEventsStreamHandler(cfg.EventBus, cfg.Log)
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Unified events stream (SSE)
		if s.eventsStream != nil {
			r.Get("/events/stream", s.eventsStream.ServeHTTP)
		}

		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.runsHandlers.HandleStartRun)
			r.Get("/", s.runsHandlers.HandleListRuns)
			r.Get("/{id}", s.runsHandlers.HandleGetRun)
			r.Get("/{id}/trials", s.runsHandlers.HandleListTrials)
			r.Get("/{id}/summary", s.runsHandlers.HandleGetSummary)
			r.Get("/{id}/export", s.runsHandlers.HandleExportCSV)
		})

		r.Post("/archive", s.archiveHandlers.HandleArchive)

		if s.catalog != nil {
			universehandlers.New(s.catalog, s.events, s.log).RegisterRoutes(r)
		}
		if s.provider != nil && s.priceStore != nil {
			historicalhandlers.New(s.provider, s.priceStore, s.catalog, s.events, s.log).RegisterRoutes(r)
		}
		if s.calendar != nil {
			calendarhandlers.New(s.calendar, s.log).RegisterRoutes(r)
		}
	})
}

// Router returns the configured handler, for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
