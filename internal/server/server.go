package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"RiseScreener/internal/metrics"
	"RiseScreener/internal/scheduler"
)

// Server serves the latest screening results over HTTP.
type Server struct {
	board     *scheduler.Board
	maxBucket int
	server    *http.Server
	logger    zerolog.Logger
}

// NewServer creates the REST API server for board.
func NewServer(addr string, board *scheduler.Board, maxBucket int, logger zerolog.Logger) *Server {
	s := &Server{
		board:     board,
		maxBucket: maxBucket,
		logger:    logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      applyMiddleware(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/highlow/{bucket}", s.handleHighLow)
	mux.HandleFunc("GET /api/runs/latest", s.handleLatestRun)
	mux.Handle("GET /metrics", metrics.Handler())
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
