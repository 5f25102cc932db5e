package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

// DownloadRepository implements repository.DownloadRepository for PostgreSQL.
type DownloadRepository struct {
	pool *Pool
}

// NewDownloadRepository creates a new PostgreSQL download repository.
func NewDownloadRepository(pool *Pool) *DownloadRepository {
	return &DownloadRepository{pool: pool}
}

// Create appends a download event.
func (r *DownloadRepository) Create(ctx context.Context, event *models.DownloadEvent) error {
	if event == nil || event.ProductID == "" {
		return fmt.Errorf("%w: download event requires a product id", repository.ErrInvalidInput)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO downloads (id, user_id, product_id, download_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.UserID,
		event.ProductID,
		event.DownloadIP,
		event.UserAgent,
		event.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown product or user", repository.ErrInvalidInput)
		}
		return fmt.Errorf("failed to record download: %w", err)
	}

	return nil
}

// CountByProduct returns the number of downloads recorded for a product.
func (r *DownloadRepository) CountByProduct(ctx context.Context, productID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM downloads WHERE product_id = $1`, productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return count, nil
}

// ListByProduct returns the most recent download events of a product.
func (r *DownloadRepository) ListByProduct(ctx context.Context, productID string, opts repository.PaginationOptions) ([]*models.DownloadEvent, error) {
	opts = opts.Normalize()

	query := `SELECT id, user_id, product_id, download_ip, user_agent, created_at
		FROM downloads WHERE product_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, productID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	var events []*models.DownloadEvent
	for rows.Next() {
		var e models.DownloadEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.ProductID, &e.DownloadIP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

var _ repository.DownloadRepository = (*DownloadRepository)(nil)
