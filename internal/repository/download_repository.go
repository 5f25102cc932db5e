package repository

import (
	"context"

	"github.com/fjmerc/softvault/internal/models"
)

// DownloadRepository records download audit events. Events are append-only.
type DownloadRepository interface {
	// Create inserts an event. An empty ID is replaced with a generated one
	// and a zero CreatedAt with the current time.
	Create(ctx context.Context, event *models.DownloadEvent) error

	// CountByProduct returns the number of recorded downloads of a product.
	CountByProduct(ctx context.Context, productID string) (int64, error)

	// ListByProduct returns the most recent events of a product.
	ListByProduct(ctx context.Context, productID string, opts PaginationOptions) ([]*models.DownloadEvent, error)
}
