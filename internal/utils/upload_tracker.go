package utils

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// UploadTracker tracks in-progress uploads for graceful shutdown.
type UploadTracker struct {
	mu            sync.RWMutex
	activeUploads map[string]*ActiveUpload
	wg            sync.WaitGroup
	shuttingDown  atomic.Bool
	shutdownCh    chan struct{}
}

// ActiveUpload represents an in-progress upload.
type ActiveUpload struct {
	ID        string
	ProductID string
	Filename  string
	StartTime time.Time
}

// NewUploadTracker creates a new UploadTracker.
func NewUploadTracker() *UploadTracker {
	return &UploadTracker{
		activeUploads: make(map[string]*ActiveUpload),
		shutdownCh:    make(chan struct{}),
	}
}

// StartUpload registers a new upload as in-progress.
// Returns false if the server is shutting down and new uploads are not accepted.
func (ut *UploadTracker) StartUpload(id, productID, filename string) bool {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	// Check shutdown status inside lock to avoid TOCTOU race condition
	if ut.shuttingDown.Load() {
		return false
	}

	ut.activeUploads[id] = &ActiveUpload{
		ID:        id,
		ProductID: productID,
		Filename:  filename,
		StartTime: time.Now(),
	}
	ut.wg.Add(1)

	slog.Debug("upload started",
		"upload_id", id,
		"product_id", productID,
		"active_uploads", len(ut.activeUploads),
	)

	return true
}

// FinishUpload marks an upload as completed.
func (ut *UploadTracker) FinishUpload(id string) {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	if _, exists := ut.activeUploads[id]; exists {
		delete(ut.activeUploads, id)
		ut.wg.Done()

		slog.Debug("upload finished",
			"upload_id", id,
			"active_uploads", len(ut.activeUploads),
		)
	} else {
		slog.Warn("FinishUpload called for non-existent upload",
			"upload_id", id,
			"active_uploads", len(ut.activeUploads),
		)
	}
}

// GetActiveCount returns the number of active uploads.
func (ut *UploadTracker) GetActiveCount() int {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	return len(ut.activeUploads)
}

// GetActiveUploads returns a snapshot of all active uploads.
func (ut *UploadTracker) GetActiveUploads() []ActiveUpload {
	ut.mu.RLock()
	defer ut.mu.RUnlock()

	uploads := make([]ActiveUpload, 0, len(ut.activeUploads))
	for _, u := range ut.activeUploads {
		uploads = append(uploads, *u)
	}
	return uploads
}

// IsShuttingDown returns true if the server is in shutdown mode.
func (ut *UploadTracker) IsShuttingDown() bool {
	return ut.shuttingDown.Load()
}

// ShutdownCh returns a channel that is closed when shutdown begins.
func (ut *UploadTracker) ShutdownCh() <-chan struct{} {
	return ut.shutdownCh
}

// BeginShutdown signals that the server is shutting down.
// New uploads will be rejected after this call.
func (ut *UploadTracker) BeginShutdown() {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	if ut.shuttingDown.CompareAndSwap(false, true) {
		close(ut.shutdownCh)
		slog.Info("upload tracker: shutdown initiated, rejecting new uploads",
			"active_uploads", len(ut.activeUploads),
		)
	}
}

// WaitForUploads waits for all active uploads to complete, respecting
// context cancellation. Returns true if all uploads completed.
func (ut *UploadTracker) WaitForUploads(ctx context.Context) bool {
	ut.BeginShutdown()

	done := make(chan struct{})
	go func() {
		ut.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("upload tracker: all uploads completed gracefully")
		return true
	case <-ctx.Done():
		active := ut.GetActiveUploads()
		slog.Warn("upload tracker: gave up waiting for uploads",
			"remaining_uploads", len(active),
			"error", ctx.Err(),
		)
		for _, u := range active {
			slog.Warn("upload tracker: abandoned upload",
				"upload_id", u.ID,
				"product_id", u.ProductID,
				"filename", u.Filename,
				"duration", time.Since(u.StartTime),
			)
		}
		return false
	}
}
