package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjmerc/softvault/internal/metrics"
	"github.com/fjmerc/softvault/internal/middleware"
	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
	"github.com/fjmerc/softvault/internal/utils"
)

const auditTimeout = 5 * time.Second

// DownloadAuditor writes download events. Failures are logged and counted
// but never reach the client.
type DownloadAuditor struct {
	downloads repository.DownloadRepository
}

// NewDownloadAuditor creates an auditor backed by downloads.
func NewDownloadAuditor(downloads repository.DownloadRepository) *DownloadAuditor {
	return &DownloadAuditor{downloads: downloads}
}

// Record stores one download event for productID.
func (a *DownloadAuditor) Record(r *http.Request, productID string) {
	// The event must be written even if the client disconnects mid-download
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditTimeout)
	defer cancel()

	event := &models.DownloadEvent{
		UserID:     middleware.GetUserIDFromContext(r.Context()),
		ProductID:  productID,
		DownloadIP: utils.GetClientIP(r),
		UserAgent:  utils.GetUserAgent(r),
	}

	if err := a.downloads.Create(ctx, event); err != nil {
		metrics.AuditFailuresTotal.Inc()
		slog.Warn("failed to record download event",
			"product_id", productID,
			"download_ip", event.DownloadIP,
			"error", err,
		)
		return
	}

	slog.Debug("download event recorded",
		"event_id", event.ID,
		"product_id", productID,
	)
}
