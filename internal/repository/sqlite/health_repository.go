package sqlite

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/fjmerc/softvault/internal/repository"
)

// slowQueryThreshold marks the record store degraded (potential lock contention)
const slowQueryThreshold = 100 * time.Millisecond

// HealthRepository implements health checks for SQLite databases.
type HealthRepository struct {
	db     *sql.DB
	dbPath string
}

// NewHealthRepository creates a new SQLite health repository.
func NewHealthRepository(db *sql.DB, dbPath string) *HealthRepository {
	return &HealthRepository{
		db:     db,
		dbPath: dbPath,
	}
}

// Ping performs a basic connectivity check to the database.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CheckHealth verifies the schema is reachable by counting products.
func (r *HealthRepository) CheckHealth(ctx context.Context) (*repository.ComponentHealth, error) {
	start := time.Now()
	health := &repository.ComponentHealth{
		Name:   "database",
		Status: repository.HealthStatusHealthy,
	}

	var products int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&products)
	health.Latency = time.Since(start)

	if err != nil {
		health.Status = repository.HealthStatusUnhealthy
		health.Message = "database query failed"
		return health, err
	}

	if health.Latency > slowQueryThreshold {
		health.Status = repository.HealthStatusDegraded
		health.Message = "high query latency"
	}

	return health, nil
}

// GetDatabaseStats returns SQLite-specific statistics.
func (r *HealthRepository) GetDatabaseStats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var pageCount, pageSize int64
	if err := r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats["size_bytes"] = pageCount * pageSize

	var downloads int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM downloads").Scan(&downloads); err != nil {
		return nil, err
	}
	stats["download_events"] = downloads

	if r.dbPath != "" {
		if info, err := os.Stat(r.dbPath + "-wal"); err == nil {
			stats["wal_size_bytes"] = info.Size()
		}
	}

	dbStats := r.db.Stats()
	stats["pool_open_connections"] = dbStats.OpenConnections
	stats["pool_in_use"] = dbStats.InUse
	stats["pool_wait_count"] = dbStats.WaitCount

	return stats, nil
}

var _ repository.HealthRepository = (*HealthRepository)(nil)
