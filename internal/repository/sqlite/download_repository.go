package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

// DownloadRepository implements repository.DownloadRepository for SQLite.
type DownloadRepository struct {
	db *sql.DB
}

// NewDownloadRepository creates a new SQLite download repository.
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
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

	var userID sql.NullString
	if event.UserID != nil {
		userID = sql.NullString{String: *event.UserID, Valid: true}
	}

	query := `INSERT INTO downloads (id, user_id, product_id, download_ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		userID,
		event.ProductID,
		event.DownloadIP,
		event.UserAgent,
		formatTime(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}

	return nil
}

// CountByProduct returns the number of downloads recorded for a product.
func (r *DownloadRepository) CountByProduct(ctx context.Context, productID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads WHERE product_id = ?`, productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return count, nil
}

// ListByProduct returns the most recent download events of a product.
func (r *DownloadRepository) ListByProduct(ctx context.Context, productID string, opts repository.PaginationOptions) ([]*models.DownloadEvent, error) {
	opts = opts.Normalize()

	query := `SELECT id, user_id, product_id, download_ip, user_agent, created_at
		FROM downloads WHERE product_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, productID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	var events []*models.DownloadEvent
	for rows.Next() {
		var e models.DownloadEvent
		var userID sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &userID, &e.ProductID, &e.DownloadIP, &e.UserAgent, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		if userID.Valid {
			e.UserID = &userID.String
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

var _ repository.DownloadRepository = (*DownloadRepository)(nil)
