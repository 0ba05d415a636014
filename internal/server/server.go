// Package server exposes the analyzer as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/kurokishi/stock-analysis-id/internal/analyzer"
	"github.com/kurokishi/stock-analysis-id/internal/fund"
	"github.com/kurokishi/stock-analysis-id/internal/recorder"
)

// Config holds server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
	Analyzer       *analyzer.Analyzer
	Fund           *fund.Manager
	Recorder       recorder.Recorder
	Watchlist      []string
	Log            zerolog.Logger
}

// Server represents the HTTP server.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	analyzer  *analyzer.Analyzer
	fund      *fund.Manager
	recorder  recorder.Recorder
	watchlist []string
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	if cfg.Recorder == nil {
		cfg.Recorder = recorder.NewNoopRecorder()
	}
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		analyzer:  cfg.Analyzer,
		fund:      cfg.Fund,
		recorder:  cfg.Recorder,
		watchlist: cfg.Watchlist,
	}

	s.setupMiddleware(cfg.AllowedOrigins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	// ARIMA order search over a long series can take a while.
	s.router.Use(middleware.Timeout(2 * time.Minute))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/stocks/{ticker}", func(r chi.Router) {
			r.Get("/analysis", s.handleAnalysis)
			r.Get("/forecast", s.handleForecast)
			r.Get("/history", s.handleHistory)
		})

		r.Get("/portfolio", s.handlePortfolio)
		r.Get("/compare", s.handleCompare)
		r.Post("/simulations", s.handleSimulation)
		r.Post("/allocations", s.handleAllocation)
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

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
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
