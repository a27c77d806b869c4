// Package server wires the chi router for the job API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/inklift/inklift/internal/errors"
	"github.com/inklift/inklift/internal/server/handlers"
	"github.com/inklift/inklift/internal/server/middleware"
)

// Server hosts the HTTP surface of the orchestration layer.
type Server struct {
	host    string
	port    int
	handler http.Handler
	httpSrv *http.Server
}

// New builds a server around the orchestrator surface. version feeds the
// health endpoint.
func New(host string, port int, orch handlers.Orchestrator, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	jobs := handlers.NewJobs(orch)
	health := handlers.NewHealthManager(version)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.NotFound(apperrors.RespondNotFound)
	r.MethodNotAllowed(apperrors.RespondMethodNotAllowed)

	r.Get("/health", health.HealthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", jobs.Submit)
		r.Get("/jobs", jobs.List)
		r.Get("/jobs/{ref}", jobs.Get)
		r.Post("/jobs/{ref}/cancel", jobs.Cancel)
		r.Post("/jobs/{ref}/retry", jobs.Retry)
		r.Get("/jobs/{ref}/wait", jobs.Wait)
		r.Post("/uploads", jobs.Upload)
	})

	return &Server{host: host, port: port, handler: r}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// ListenAndServe blocks until ctx is cancelled, then drains with a
// 10-second grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}
