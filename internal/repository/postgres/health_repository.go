package postgres

import (
	"context"
	"time"

	"github.com/fjmerc/softvault/internal/repository"
)

// slowQueryThreshold marks the record store degraded
const slowQueryThreshold = 100 * time.Millisecond

// HealthRepository implements health checks for PostgreSQL databases.
type HealthRepository struct {
	pool *Pool
}

// NewHealthRepository creates a new PostgreSQL health repository.
func NewHealthRepository(pool *Pool) *HealthRepository {
	return &HealthRepository{pool: pool}
}

// Ping performs a basic connectivity check to the database.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CheckHealth verifies the schema is reachable by counting products.
func (r *HealthRepository) CheckHealth(ctx context.Context) (*repository.ComponentHealth, error) {
	start := time.Now()
	health := &repository.ComponentHealth{
		Name:   "database",
		Status: repository.HealthStatusHealthy,
	}

	var products int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&products)
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

// GetDatabaseStats returns PostgreSQL-specific statistics.
func (r *HealthRepository) GetDatabaseStats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var dbSize int64
	if err := r.pool.QueryRow(ctx, "SELECT pg_database_size(current_database())").Scan(&dbSize); err != nil {
		return nil, err
	}
	stats["size_bytes"] = dbSize

	var downloads int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM downloads").Scan(&downloads); err != nil {
		return nil, err
	}
	stats["download_events"] = downloads

	poolStats := r.pool.Stat()
	stats["pool_acquired_conns"] = poolStats.AcquiredConns()
	stats["pool_idle_conns"] = poolStats.IdleConns()
	stats["pool_total_conns"] = poolStats.TotalConns()
	stats["pool_max_conns"] = poolStats.MaxConns()
	stats["pool_acquire_duration_ms"] = poolStats.AcquireDuration().Milliseconds()

	return stats, nil
}

var _ repository.HealthRepository = (*HealthRepository)(nil)
