// Package server provides the optional read-only status server.
//
// The server exposes live round counters while the loop is running:
//
//	GET /health   liveness with registered checks
//	GET /stats    per-endpoint counters and success rates
//	GET /version  build information
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/3leaps/jobprobe/internal/observability"
	"github.com/3leaps/jobprobe/internal/server/handlers"
	"github.com/3leaps/jobprobe/internal/server/middleware"
)

const shutdownTimeout = 5 * time.Second

// VersionInfo is reported by /version and /health.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the status HTTP server.
type Server struct {
	addr   string
	router chi.Router
	health *handlers.HealthManager
}

// New creates a status server listening on addr and reporting src.
func New(addr string, src handlers.StatsSource, version VersionInfo) *Server {
	s := &Server{
		addr:   addr,
		health: handlers.NewHealthManager(version.Version),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	r.Get("/health", s.health.HealthHandler)
	r.Get("/stats", handlers.StatsHandler(src))
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(version)
	})

	s.router = r
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Health returns the health manager so callers can register checks.
func (s *Server) Health() *handlers.HealthManager {
	return s.health
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.CLILogger.Info("Status server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
