// Package server wires configuration, storage and repositories into the
// HTTP surface and owns the server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/middleware"
	"github.com/fjmerc/softvault/internal/repository"
	"github.com/fjmerc/softvault/internal/storage"
	"github.com/fjmerc/softvault/internal/utils"
)

// SessionCleanupInterval is how often expired login sessions are purged.
const SessionCleanupInterval = 30 * time.Minute

// Stores holds one sandbox per artifact category.
type Stores struct {
	Software      storage.ArtifactStore
	ProductImages storage.ArtifactStore
	Previews      storage.ArtifactStore
}

// All returns the stores in a fixed order.
func (s Stores) All() []storage.ArtifactStore {
	return []storage.ArtifactStore{s.Software, s.ProductImages, s.Previews}
}

func (s Stores) validate() error {
	if s.Software == nil || s.ProductImages == nil || s.Previews == nil {
		return errors.New("all artifact stores are required")
	}
	return nil
}

// Server is the softvault HTTP server.
type Server struct {
	cfg       *config.Config
	repos     *repository.Repositories
	stores    Stores
	tracker   *utils.UploadTracker
	startTime time.Time

	loginLimiter *middleware.RateLimiter
	handler      http.Handler
	httpServer   *http.Server
}

// New builds a server. Nothing listens until ListenAndServe is called.
func New(cfg *config.Config, repos *repository.Repositories, stores Stores) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if repos == nil || repos.Products == nil || repos.Downloads == nil || repos.Users == nil || repos.Health == nil {
		return nil, errors.New("all repositories are required")
	}
	if err := stores.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:          cfg,
		repos:        repos,
		stores:       stores,
		tracker:      utils.NewUploadTracker(),
		startTime:    time.Now(),
		loginLimiter: middleware.NewRateLimiter(cfg.RateLimitLogin, time.Hour),
	}
	s.handler = s.routes()
	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Tracker returns the upload tracker used for draining.
func (s *Server) Tracker() *utils.UploadTracker {
	return s.tracker
}

// ListenAndServe blocks until the server stops. It returns nil after a
// graceful shutdown.
func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting uploads, waits for in-flight ones until ctx
// expires, then shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.loginLimiter.Stop()

	if !s.tracker.WaitForUploads(ctx) {
		slog.Warn("shutting down with uploads still in progress",
			"active_uploads", s.tracker.GetActiveCount(),
		)
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		if closeErr := s.httpServer.Close(); closeErr != nil {
			slog.Error("server close failed", "error", closeErr)
		}
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("server shutdown complete")
	return nil
}

// RunSessionCleanup purges expired sessions every interval until ctx is done.
func (s *Server) RunSessionCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupSessions(ctx)
		}
	}
}

func (s *Server) cleanupSessions(ctx context.Context) {
	removed, err := s.repos.Users.DeleteExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		slog.Error("failed to cleanup expired user sessions", "error", err)
		return
	}
	slog.Debug("cleaned up expired user sessions", "removed", removed)
}
