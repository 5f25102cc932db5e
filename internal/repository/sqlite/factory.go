package sqlite

import (
	"database/sql"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/repository"
)

// NewRepositories creates all SQLite repository implementations.
// The db parameter must be a valid, open database connection with the
// schema applied. The returned Cleanup closes it.
func NewRepositories(cfg *config.Config, db *sql.DB) (*repository.Repositories, error) {
	if db == nil {
		return nil, repository.ErrNilDatabase
	}

	// Handle nil config gracefully for testing scenarios
	dbPath := ""
	if cfg != nil {
		dbPath = cfg.DBPath
	}

	return &repository.Repositories{
		Products:     NewProductRepository(db),
		Downloads:    NewDownloadRepository(db),
		Users:        NewUserRepository(db),
		Health:       NewHealthRepository(db, dbPath),
		DatabaseType: repository.DatabaseTypeSQLite,
		Cleanup: func() {
			db.Close()
		},
	}, nil
}
