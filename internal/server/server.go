// Package server implements the HTTP query API over stored runs.
//
// The server is stateless: every request opens its own short-lived
// read-only handle to the relevant run file, so queries never block each
// other or the producing process. All configuration is passed in
// explicitly; there is no process-wide mutable state.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config holds all dependencies and settings for creating a Server.
type Config struct {
	// Root is the projects directory containing
	// <project>/runs/*.sqlite files.
	Root string

	Logger *slog.Logger

	// HTTP server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string
}

// Server is the goodseed query HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := NewHandlers(HandlersDeps{
		Root:    cfg.Root,
		Logger:  cfg.Logger,
		Version: cfg.Version,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", h.HandleListRuns)
	mux.HandleFunc("GET /api/runs/{project}/{run}/configs", h.HandleConfigs)
	mux.HandleFunc("GET /api/runs/{project}/{run}/metrics", h.HandleMetrics)
	mux.HandleFunc("GET /api/runs/{project}/{run}/metric-paths", h.HandleMetricPaths)
	mux.HandleFunc("GET /api/health", h.HandleHealth)

	// CORS preflight succeeds on any path, body-less.
	mux.HandleFunc("OPTIONS /", h.HandlePreflight)

	// Everything else is a JSON 404.
	mux.HandleFunc("/", h.HandleNotFound)

	// Middleware chain (outermost executes first):
	// request ID → logging → CORS → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = corsMiddleware(handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
