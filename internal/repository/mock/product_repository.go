// Package mock provides in-memory repository implementations for tests.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

// ProductRepository is a mock implementation of repository.ProductRepository.
//
// Error injection fields and hooks should be set before concurrent
// operations begin. They are not protected by the mutex.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*models.Product

	// Error injection
	CreateError         error
	GetByIDError        error
	ListError           error
	UpdateArtifactError error
	UpdateStatusError   error

	// Hooks
	OnUpdateArtifact func(ctx context.Context, id string, ref models.ArtifactRef) error

	// Call tracking
	UpdateArtifactCalls int
}

// NewProductRepository creates an empty mock ProductRepository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]*models.Product),
	}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// Reset clears all products, errors and hooks.
func (r *ProductRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.products = make(map[string]*models.Product)
	r.CreateError = nil
	r.GetByIDError = nil
	r.ListError = nil
	r.UpdateArtifactError = nil
	r.UpdateStatusError = nil
	r.OnUpdateArtifact = nil
	r.UpdateArtifactCalls = 0
}

// AddProduct stores a product directly for test setup. An empty ID is
// replaced with a generated one.
func (r *ProductRepository) AddProduct(p *models.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.ProductStatusDraft
	}
	cp := *p
	r.products[p.ID] = &cp
}

// Create implements repository.ProductRepository.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if r.CreateError != nil {
		return r.CreateError
	}
	if product == nil || product.Title == "" {
		return fmt.Errorf("%w: title is required", repository.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if _, ok := r.products[product.ID]; ok {
		return repository.ErrDuplicateKey
	}
	if product.Status == "" {
		product.Status = models.ProductStatusDraft
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	cp := *product
	r.products[product.ID] = &cp
	return nil
}

// GetByID implements repository.ProductRepository.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	if r.GetByIDError != nil {
		return nil, r.GetByIDError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// List implements repository.ProductRepository.
func (r *ProductRepository) List(ctx context.Context, opts repository.PaginationOptions) ([]*models.Product, error) {
	if r.ListError != nil {
		return nil, r.ListError
	}
	opts = opts.Normalize()

	r.mu.RLock()
	all := make([]*models.Product, 0, len(r.products))
	for _, p := range r.products {
		cp := *p
		all = append(all, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if opts.Offset >= len(all) {
		return nil, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[opts.Offset:end], nil
}

// UpdateArtifact implements repository.ProductRepository.
func (r *ProductRepository) UpdateArtifact(ctx context.Context, id string, ref models.ArtifactRef) error {
	r.mu.Lock()
	r.UpdateArtifactCalls++
	r.mu.Unlock()

	if r.UpdateArtifactError != nil {
		return r.UpdateArtifactError
	}
	if r.OnUpdateArtifact != nil {
		return r.OnUpdateArtifact(ctx, id, ref)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Filename = ref.Filename
	p.FileSize = ref.FileSize
	p.DownloadURL = ref.DownloadURL
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStatus implements repository.ProductRepository.
func (r *ProductRepository) UpdateStatus(ctx context.Context, id string, status models.ProductStatus) error {
	if r.UpdateStatusError != nil {
		return r.UpdateStatusError
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", repository.ErrInvalidInput, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}
