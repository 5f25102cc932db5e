package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/repository/backend"
	"github.com/fjmerc/softvault/internal/server"
	"github.com/fjmerc/softvault/internal/storage"
	"github.com/fjmerc/softvault/internal/storage/filesystem"
)

func main() {
	if err := run(); err != nil {
		slog.Error("softvault exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	config.SetupLogger(cfg, os.Stdout)

	slog.Info("starting softvault",
		"port", cfg.Port,
		"db_type", cfg.DatabaseType,
		"uploads_base_path", cfg.UploadsBasePath,
		"previews_base_path", cfg.PreviewsBasePath,
		"max_software_size", cfg.MaxSoftwareSize,
		"cors_allowed_origin", cfg.CORSAllowedOrigin,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.Close()

	stores, err := openStores(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, repos, stores)
	if err != nil {
		return err
	}

	go srv.RunSessionCleanup(ctx, server.SessionCleanupInterval)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		slog.Info("shutdown signal received",
			"signal", sig,
			"active_uploads", srv.Tracker().GetActiveCount(),
		)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		return srv.Shutdown(shutdownCtx)
	}
}

// openStores builds one sandbox per category. Previews have their own root.
func openStores(cfg *config.Config) (server.Stores, error) {
	software, err := filesystem.NewSandbox(cfg.UploadsBasePath, storage.CategorySoftware)
	if err != nil {
		return server.Stores{}, err
	}
	images, err := filesystem.NewSandbox(cfg.UploadsBasePath, storage.CategoryProductImages)
	if err != nil {
		return server.Stores{}, err
	}
	previews, err := filesystem.NewSandbox(cfg.PreviewsBasePath, storage.CategoryPreviews)
	if err != nil {
		return server.Stores{}, err
	}

	return server.Stores{
		Software:      software,
		ProductImages: images,
		Previews:      previews,
	}, nil
}
