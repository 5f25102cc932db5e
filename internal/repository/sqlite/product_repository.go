package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

// ProductRepository implements repository.ProductRepository for SQLite.
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new SQLite product repository.
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
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

	query := `INSERT INTO products (` + productColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		product.ID,
		product.Title,
		string(product.Status),
		product.Filename,
		product.FileSize,
		product.DownloadURL,
		formatTime(now),
		formatTime(now),
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
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
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

	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
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

// UpdateArtifact links a stored artifact to the product.
func (r *ProductRepository) UpdateArtifact(ctx context.Context, id string, ref models.ArtifactRef) error {
	if err := validateArtifactFilename(ref.Filename); err != nil {
		return err
	}

	query := `UPDATE products SET filename = ?, file_size = ?, download_url = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, ref.Filename, ref.FileSize, ref.DownloadURL, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update product artifact: %w", err)
	}

	return requireOneRow(result)
}

// UpdateStatus changes the publication state of a product.
func (r *ProductRepository) UpdateStatus(ctx context.Context, id string, status models.ProductStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", repository.ErrInvalidInput, status)
	}

	query := `UPDATE products SET status = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update product status: %w", err)
	}

	return requireOneRow(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var status, createdAt, updatedAt string

	err := row.Scan(
		&p.ID,
		&p.Title,
		&status,
		&p.Filename,
		&p.FileSize,
		&p.DownloadURL,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = models.ProductStatus(status)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &p, nil
}

func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.ProductRepository = (*ProductRepository)(nil)
