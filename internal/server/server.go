// Package server exposes the read API: composite, metrics, history, regimes,
// alerts and analytics over chi.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/cache"
	"github.com/aristath/pxi/internal/config"
	"github.com/aristath/pxi/internal/database"
	"github.com/aristath/pxi/internal/scheduler"
	"github.com/aristath/pxi/internal/store"
)

// Server is the HTTP read API.
type Server struct {
	cfg        *config.Config
	db         *database.DB
	store      *store.Store
	schedState *scheduler.State
	cache      *cache.Cache
	limiter    *ipRateLimiter
	log        zerolog.Logger
	http       *http.Server
	startedAt  time.Time
}

// New creates the server with its middleware stack and routes.
func New(cfg *config.Config, db *database.DB, st *store.Store, schedState *scheduler.State, log zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		db:         db,
		store:      st,
		schedState: schedState,
		limiter:    newIPRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		log:        log.With().Str("component", "server").Logger(),
		startedAt:  time.Now().UTC(),
	}
	if cfg.CacheEnabled {
		s.cache = cache.New(cfg.CacheTTL)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(30 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	router.Use(s.rateLimit)

	s.registerRoutes(router)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.http.Shutdown(ctx)
}
