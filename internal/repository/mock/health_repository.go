package mock

import (
	"context"

	"github.com/fjmerc/softvault/internal/repository"
)

// HealthRepository is a mock implementation of repository.HealthRepository.
type HealthRepository struct {
	PingError   error
	Status      repository.HealthStatus
	StatsError  error
	HealthError error
}

// NewHealthRepository returns a mock that reports healthy.
func NewHealthRepository() *HealthRepository {
	return &HealthRepository{Status: repository.HealthStatusHealthy}
}

var _ repository.HealthRepository = (*HealthRepository)(nil)

// Ping implements repository.HealthRepository.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.PingError
}

// CheckHealth implements repository.HealthRepository.
func (r *HealthRepository) CheckHealth(ctx context.Context) (*repository.ComponentHealth, error) {
	health := &repository.ComponentHealth{Name: "database", Status: r.Status}
	if r.HealthError != nil {
		health.Status = repository.HealthStatusUnhealthy
		health.Message = "database query failed"
		return health, r.HealthError
	}
	return health, nil
}

// GetDatabaseStats implements repository.HealthRepository.
func (r *HealthRepository) GetDatabaseStats(ctx context.Context) (map[string]any, error) {
	if r.StatsError != nil {
		return nil, r.StatsError
	}
	return map[string]any{"mock": true}, nil
}

// NewRepositories bundles fresh mocks into a Repositories value.
func NewRepositories() (*repository.Repositories, *ProductRepository, *DownloadRepository, *UserRepository) {
	products := NewProductRepository()
	downloads := NewDownloadRepository()
	users := NewUserRepository()
	return &repository.Repositories{
		Products:     products,
		Downloads:    downloads,
		Users:        users,
		Health:       NewHealthRepository(),
		DatabaseType: repository.DatabaseTypeSQLite,
	}, products, downloads, users
}
