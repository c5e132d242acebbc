// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"taskplane/internal/cache"
	"taskplane/internal/controller/handlers"
	"taskplane/internal/controller/middleware"
	"taskplane/internal/executor"
)

// Options tunes the HTTP server.
type Options struct {
	// RateLimitRPS caps the public API request rate. 0 means unlimited.
	RateLimitRPS   float64
	RateLimitBurst int

	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
func New(addr string, store handlers.StoreFactory, driver handlers.Driver, c *cache.TaskCache, exec executor.ExecutionLayer, logger *slog.Logger, opts Options) *Server {
	h := handlers.New(store, driver, c, exec, logger)
	limitMW := middleware.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	// Public operator apis
	public := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, limitMW(http.HandlerFunc(fn)))
	}
	public("POST /jobs", h.CreateJob)
	public("PUT /jobs/{job}/config", h.UpdateJobConfig)
	public("GET /jobs/{job}/tasks", h.ListTasks)
	public("GET /jobs/{job}/tasks/{instance}", h.GetTask)
	public("GET /jobs/{job}/tasks/{instance}/cache", h.GetTaskCache)
	public("GET /jobs/{job}/tasks/{instance}/events", h.GetPodEvents)
	public("DELETE /jobs/{job}/tasks/{instance}/events", h.DeletePodEvents)
	public("GET /jobs/{job}/tasks/{instance}/sandbox", h.BrowseSandbox)
	public("POST /jobs/{job}/tasks:start", h.StartTasks)
	public("POST /jobs/{job}/tasks:stop", h.StopTasks)
	public("POST /jobs/{job}/tasks:restart", h.RestartTasks)
	public("POST /jobs/{job}/tasks:refresh", h.RefreshTasks)
	public("POST /jobs/{job}/tasks:query", h.QueryTasks)

	// Internal endpoints
	// These are called by the execution layer.
	// these should run on a separate port or strict network rules.
	mux.HandleFunc("PUT /internal/tasks/{task_id}/state", h.InternalStateReport)
	mux.HandleFunc("PUT /internal/tasks/{task_id}/health", h.InternalHealthReport)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      middleware.RequestID(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
