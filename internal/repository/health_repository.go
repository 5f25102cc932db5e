package repository

import (
	"context"
	"time"
)

// HealthStatus represents the overall health state.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency_ns,omitempty"`
	Message string        `json:"message,omitempty"`
}

// HealthRepository provides health check operations for the record store.
type HealthRepository interface {
	// Ping performs a basic connectivity check. Used by liveness probes.
	Ping(ctx context.Context) error

	// CheckHealth runs a query against the schema and reports latency.
	CheckHealth(ctx context.Context) (*ComponentHealth, error)

	// GetDatabaseStats returns backend-specific statistics for monitoring.
	GetDatabaseStats(ctx context.Context) (map[string]any, error)
}
