package repository

import (
	"context"

	"github.com/fjmerc/softvault/internal/models"
)

// ProductRepository provides access to product records.
type ProductRepository interface {
	// Create inserts a new product. An empty ID is replaced with a generated one.
	Create(ctx context.Context, product *models.Product) error

	// GetByID returns the product or ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Product, error)

	// List returns products ordered by creation time, newest first.
	List(ctx context.Context, opts PaginationOptions) ([]*models.Product, error)

	// UpdateArtifact links a stored artifact to the product. Returns
	// ErrNotFound when the product does not exist.
	UpdateArtifact(ctx context.Context, id string, ref models.ArtifactRef) error

	// UpdateStatus changes the publication state. Returns ErrNotFound when
	// the product does not exist and ErrInvalidInput for unknown states.
	UpdateStatus(ctx context.Context, id string, status models.ProductStatus) error
}
