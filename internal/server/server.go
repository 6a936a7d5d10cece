// Package server provides the HTTP server and routing for Helmsman.
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

	"github.com/aristath/helmsman/internal/config"
	"github.com/aristath/helmsman/internal/database"
	ledgerhandlers "github.com/aristath/helmsman/internal/modules/ledger/handlers"
	optimizationhandlers "github.com/aristath/helmsman/internal/modules/optimization/handlers"
	portfoliohandlers "github.com/aristath/helmsman/internal/modules/portfolio/handlers"
	quoteshandlers "github.com/aristath/helmsman/internal/modules/quotes/handlers"
	riskhandlers "github.com/aristath/helmsman/internal/modules/risk/handlers"
	screenerhandlers "github.com/aristath/helmsman/internal/modules/screener/handlers"
)

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Config   *config.Config
	LedgerDB *database.DB
	QuotesDB *database.DB
	CacheDB  *database.DB

	LedgerHandlers       *ledgerhandlers.Handler
	QuotesHandlers       *quoteshandlers.Handler
	PortfolioHandlers    *portfoliohandlers.Handler
	RiskHandlers         *riskhandlers.Handler
	OptimizationHandlers *optimizationhandlers.Handler
	ScreenerHandlers     *screenerhandlers.Handler
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.Config.DataDir,
			cfg.LedgerDB,
			cfg.QuotesDB,
			cfg.CacheDB,
		),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
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
func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
		r.Get("/system/databases", s.systemHandlers.HandleDatabaseStats)

		cfg.LedgerHandlers.RegisterRoutes(r)
		cfg.QuotesHandlers.RegisterRoutes(r)
		cfg.PortfolioHandlers.RegisterRoutes(r)
		cfg.RiskHandlers.RegisterRoutes(r)
		cfg.OptimizationHandlers.RegisterRoutes(r)
		cfg.ScreenerHandlers.RegisterRoutes(r)
	})
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
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the underlying handler
func (s *Server) Router() http.Handler {
	return s.router
}
