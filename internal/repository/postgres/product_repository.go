package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

// ProductRepository implements repository.ProductRepository for PostgreSQL.
type ProductRepository struct {
	pool *Pool
}

// NewProductRepository creates a new PostgreSQL product repository.
func NewProductRepository(pool *Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const maxTitleLen = 255

const productColumns = `id, title, status, filename, file_size, download_url, created_at, updated_at`

// Create inserts a new product record.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product == nil {
		return fmt.Errorf("%w: product cannot be nil", repository.ErrInvalidInput)
	}
	title := strings.TrimSpace(product.Title)
	if title == "" || len(title) > maxTitleLen {
		return fmt.Errorf("%w: title must be 1-%d characters", repository.ErrInvalidInput, maxTitleLen)
	}
	if product.Status == "" {
		product.Status = models.ProductStatusDraft
	}
	if !product.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", repository.ErrInvalidInput, product.Status)
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	product.Title = title
	product.CreatedAt = now
	product.UpdatedAt = now

	query := `INSERT INTO products (` + productColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		product.ID,
		product.Title,
		string(product.Status),
		product.Filename,
		product.FileSize,
		product.DownloadURL,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// List returns products newest first.
func (r *ProductRepository) List(ctx context.Context, opts repository.PaginationOptions) ([]*models.Product, error) {
	opts = opts.Normalize()

	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	return products, rows.Err()
}

// UpdateArtifact links a stored artifact to the product. Serialization
// failures from concurrent uploads to the same product are retried.
func (r *ProductRepository) UpdateArtifact(ctx context.Context, id string, ref models.ArtifactRef) error {
	if err := validateArtifactFilename(ref.Filename); err != nil {
		return err
	}

	query := `UPDATE products SET filename = $1, file_size = $2, download_url = $3, updated_at = $4 WHERE id = $5`
	tag, err := withRetry(ctx, defaultMaxRetries, func() (pgconn.CommandTag, error) {
		return r.pool.Exec(ctx, query, ref.Filename, ref.FileSize, ref.DownloadURL, time.Now().UTC(), id)
	})
	if err != nil {
		return fmt.Errorf("failed to update product artifact: %w", err)
	}

	return requireOneRow(tag)
}

// UpdateStatus changes the publication state of a product.
func (r *ProductRepository) UpdateStatus(ctx context.Context, id string, status models.ProductStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", repository.ErrInvalidInput, status)
	}

	query := `UPDATE products SET status = $1, updated_at = $2 WHERE id = $3`
	tag, err := r.pool.Exec(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update product status: %w", err)
	}

	return requireOneRow(tag)
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	var status string

	err := row.Scan(
		&p.ID,
		&p.Title,
		&status,
		&p.Filename,
		&p.FileSize,
		&p.DownloadURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = models.ProductStatus(status)
	return &p, nil
}

func requireOneRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.ProductRepository = (*ProductRepository)(nil)
