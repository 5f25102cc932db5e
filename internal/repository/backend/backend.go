// Package backend opens the record store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/database"
	"github.com/fjmerc/softvault/internal/repository"
	"github.com/fjmerc/softvault/internal/repository/postgres"
	"github.com/fjmerc/softvault/internal/repository/sqlite"
)

// Open connects to the configured database, applies migrations and returns
// the repositories. Callers must Close the result.
func Open(ctx context.Context, cfg *config.Config) (*repository.Repositories, error) {
	switch cfg.DatabaseType {
	case config.DatabaseTypeSQLite, "":
		db, err := database.Initialize(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		repos, err := sqlite.NewRepositories(cfg, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("database initialized", "type", config.DatabaseTypeSQLite, "path", cfg.DBPath)
		return repos, nil

	case config.DatabaseTypePostgreSQL:
		repos, err := postgres.NewRepositories(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("database initialized",
			"type", config.DatabaseTypePostgreSQL,
			"host", cfg.PostgreSQL.Host,
			"database", cfg.PostgreSQL.Database,
		)
		return repos, nil

	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}
}

// MigrationInfo is one schema migration and whether it has been applied.
type MigrationInfo struct {
	Name    string
	Applied bool
}

// MigrationStatus reports the schema migrations of the configured database.
// SQLite databases are migrated on open, so pending entries only show up
// for PostgreSQL with auto-migrate disabled.
func MigrationStatus(ctx context.Context, cfg *config.Config) ([]MigrationInfo, error) {
	switch cfg.DatabaseType {
	case config.DatabaseTypeSQLite, "":
		db, err := database.Initialize(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		status, err := database.GetMigrationStatus(db)
		if err != nil {
			return nil, err
		}
		out := make([]MigrationInfo, 0, len(status))
		for _, m := range status {
			out = append(out, MigrationInfo{Name: m.Name, Applied: m.Applied})
		}
		return out, nil

	case config.DatabaseTypePostgreSQL:
		if cfg.PostgreSQL == nil {
			return nil, fmt.Errorf("PostgreSQL configuration is nil")
		}
		pool, err := postgres.OpenPool(ctx, cfg.PostgreSQL)
		if err != nil {
			return nil, err
		}
		defer pool.Close()

		status, err := postgres.GetMigrationStatus(ctx, pool)
		if err != nil {
			return nil, err
		}
		out := make([]MigrationInfo, 0, len(status))
		for _, m := range status {
			out = append(out, MigrationInfo{Name: m.Name, Applied: m.Applied})
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}
}
