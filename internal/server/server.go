// Package server provides the HTTP API for kensaku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kensaku/internal/cache"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/pkg/utils"
	"go.uber.org/zap"
)

// requestTimeout bounds every request, embedding included.
const requestTimeout = 60 * time.Second

// Server is the HTTP server for the kensaku API.
type Server struct {
	engine *search.Engine
	cache  *cache.Cache
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server. c may be nil when no cache backend is configured.
func NewServer(engine *search.Engine, c *cache.Cache, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		engine: engine,
		cache:  c,
		config: cfg,
		logger: utils.OrNop(logger),
	}
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/cache/entries", s.handleCacheEntries)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
