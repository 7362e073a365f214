// Package server exposes the fetch pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"github.com/redis/go-redis/v9"

	"github.com/irislabs/iris/browser"
	"github.com/irislabs/iris/client"
	"github.com/irislabs/iris/config"
	"github.com/irislabs/iris/logger"
	"github.com/irislabs/iris/sentinel"
)

const (
	serviceName    = "iris"
	serviceVersion = "1.0.0"

	httpReadTimeout     = 30 * time.Second
	httpWriteTimeout    = 120 * time.Second
	httpIdleTimeout     = 60 * time.Second
	httpShutdownTimeout = 10 * time.Second
)

// Deps are the collaborators the HTTP layer reports on and routes to. Pool,
// Sentinel, and Redis may be nil; the health endpoint reflects their absence.
type Deps struct {
	Client   *client.Client
	Pool     *browser.Pool
	Sentinel *sentinel.Client
	Redis    *redis.Client
}

// Server is the Iris HTTP server.
type Server struct {
	cfg     *config.Settings
	log     logger.Logger
	deps    Deps
	router  *chi.Mux
	started time.Time
}

// New builds the router with the full middleware stack.
func New(cfg *config.Settings, log logger.Logger, deps Deps) *Server {
	if log == nil {
		log = logger.Noop()
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		deps:    deps,
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httplog.RequestLogger(logger.Unwrap(log), &httplog.Options{
		Level: slog.LevelInfo,
	}))
	r.Use(chimiddleware.Recoverer)
	r.Use(RateLimit(RateLimitConfig{RedisClient: deps.Redis}))

	r.Post("/fetch", s.handleFetch)
	r.Post("/batch", s.handleBatch)
	r.Delete("/cache/{url_hash}", s.handleCacheInvalidate)
	r.Get("/health", s.handleHealth)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}
