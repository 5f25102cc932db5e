package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

// DownloadRepository is a mock implementation of repository.DownloadRepository.
type DownloadRepository struct {
	mu     sync.RWMutex
	events []*models.DownloadEvent

	// Error injection
	CreateError error
	CountError  error
	ListError   error
}

// NewDownloadRepository creates an empty mock DownloadRepository.
func NewDownloadRepository() *DownloadRepository {
	return &DownloadRepository{}
}

var _ repository.DownloadRepository = (*DownloadRepository)(nil)

// Reset clears all events and errors.
func (r *DownloadRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
	r.CreateError = nil
	r.CountError = nil
	r.ListError = nil
}

// Events returns copies of all recorded events in insertion order.
func (r *DownloadRepository) Events() []models.DownloadEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.DownloadEvent, len(r.events))
	for i, e := range r.events {
		out[i] = *e
	}
	return out
}

// Create implements repository.DownloadRepository.
func (r *DownloadRepository) Create(ctx context.Context, event *models.DownloadEvent) error {
	if r.CreateError != nil {
		return r.CreateError
	}
	if event == nil || event.ProductID == "" {
		return fmt.Errorf("%w: download event requires a product id", repository.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	cp := *event
	if event.UserID != nil {
		uid := *event.UserID
		cp.UserID = &uid
	}
	r.events = append(r.events, &cp)
	return nil
}

// CountByProduct implements repository.DownloadRepository.
func (r *DownloadRepository) CountByProduct(ctx context.Context, productID string) (int64, error) {
	if r.CountError != nil {
		return 0, r.CountError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, e := range r.events {
		if e.ProductID == productID {
			n++
		}
	}
	return n, nil
}

// ListByProduct implements repository.DownloadRepository. Events are
// returned newest first.
func (r *DownloadRepository) ListByProduct(ctx context.Context, productID string, opts repository.PaginationOptions) ([]*models.DownloadEvent, error) {
	if r.ListError != nil {
		return nil, r.ListError
	}
	opts = opts.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.DownloadEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].ProductID == productID {
			cp := *r.events[i]
			matched = append(matched, &cp)
		}
	}

	if opts.Offset >= len(matched) {
		return nil, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[opts.Offset:end], nil
}
