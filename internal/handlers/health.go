package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/metrics"
	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
	"github.com/fjmerc/softvault/internal/storage"
	"github.com/fjmerc/softvault/internal/utils"
)

const (
	// Health status thresholds
	criticalDiskFreeBytes   = 500 * 1024 * 1024 // 500MB
	criticalDiskUsedPercent = 98.0

	// Health check timeout for external dependencies
	healthCheckTimeout = 5 * time.Second
)

// setHealthCacheHeaders sets appropriate cache-control headers for health endpoints.
// Health checks should never be cached to ensure accurate probe responses.
func setHealthCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// HealthDeps bundles what the health endpoint inspects.
type HealthDeps struct {
	Health  repository.HealthRepository
	Stores  []storage.ArtifactStore
	Tracker *utils.UploadTracker
}

// HealthHandler reports database and storage health. It answers 503 only
// when a component is unhealthy; degraded still answers 200.
func HealthHandler(deps HealthDeps, cfg *config.Config, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		response := getComprehensiveHealth(ctx, deps, cfg, startTime)

		metrics.HealthChecksTotal.WithLabelValues(response.Status).Inc()
		updateHealthStatusGauge(response.Status)

		httpCode := http.StatusOK
		if response.Status == string(repository.HealthStatusUnhealthy) {
			httpCode = http.StatusServiceUnavailable
		}

		setHealthCacheHeaders(w)
		sendJSON(w, httpCode, response)
	}
}

// HealthLivenessHandler handles liveness probe requests
// Minimal check: is the process alive and can we ping the database?
func HealthLivenessHandler(healthRepo repository.HealthRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setHealthCacheHeaders(w)

		if err := healthRepo.Ping(r.Context()); err != nil {
			slog.Error("liveness check failed: database ping error", "error", err)
			sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}

		sendJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

func getComprehensiveHealth(ctx context.Context, deps HealthDeps, cfg *config.Config, startTime time.Time) *models.HealthResponse {
	response := &models.HealthResponse{
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
	}
	if deps.Tracker != nil {
		response.ActiveUploads = deps.Tracker.GetActiveCount()
	}

	if deps.Health != nil {
		response.Components = append(response.Components, checkDatabase(ctx, deps.Health))

		stats, err := deps.Health.GetDatabaseStats(ctx)
		if err != nil {
			slog.Warn("failed to get database stats", "error", err)
		} else {
			response.Database = stats
		}
	}

	for _, store := range deps.Stores {
		response.Components = append(response.Components, checkStorage(store, cfg.MaxSoftwareSize))
	}

	response.Status = overallStatus(response.Components)
	return response
}

func checkDatabase(ctx context.Context, healthRepo repository.HealthRepository) models.ComponentStatus {
	health, err := healthRepo.CheckHealth(ctx)
	if err != nil {
		slog.Error("database health check failed", "error", err)
		return models.ComponentStatus{
			Name:    "database",
			Status:  string(repository.HealthStatusUnhealthy),
			Message: "database health check failed",
		}
	}

	return models.ComponentStatus{
		Name:      "database",
		Status:    string(health.Status),
		LatencyMs: health.Latency.Milliseconds(),
		Message:   health.Message,
	}
}

// checkStorage inspects the category directory, or its nearest existing
// parent when the directory has not been created yet.
func checkStorage(store storage.ArtifactStore, maxUpload int64) models.ComponentStatus {
	status := models.ComponentStatus{
		Name:   "storage:" + store.Category(),
		Status: string(repository.HealthStatusHealthy),
	}

	dir := existingAncestor(store.Dir())

	diskInfo, err := utils.GetDiskSpace(dir)
	if err != nil {
		slog.Error("failed to get disk space", "category", store.Category(), "error", err)
		status.Status = string(repository.HealthStatusUnhealthy)
		status.Message = "disk space check failed"
		return status
	}

	if !isDirectoryWritable(dir) {
		status.Status = string(repository.HealthStatusUnhealthy)
		status.Message = "directory not writable"
		return status
	}

	switch {
	case diskInfo.AvailableBytes < criticalDiskFreeBytes:
		status.Status = string(repository.HealthStatusUnhealthy)
		status.Message = fmt.Sprintf("critical: disk space < 500MB (%s remaining)", utils.FormatBytes(diskInfo.AvailableBytes))
	case diskInfo.UsedPercent > criticalDiskUsedPercent:
		status.Status = string(repository.HealthStatusUnhealthy)
		status.Message = fmt.Sprintf("critical: disk usage > 98%% (%.1f%% used)", diskInfo.UsedPercent)
	case !diskInfo.HasHeadroom(maxUpload):
		status.Status = string(repository.HealthStatusDegraded)
		status.Message = fmt.Sprintf("warning: low disk headroom (%s available, %.1f%% used)",
			utils.FormatBytes(diskInfo.AvailableBytes), diskInfo.UsedPercent)
	}

	return status
}

func overallStatus(components []models.ComponentStatus) string {
	result := repository.HealthStatusHealthy
	for _, c := range components {
		switch repository.HealthStatus(c.Status) {
		case repository.HealthStatusUnhealthy:
			return string(repository.HealthStatusUnhealthy)
		case repository.HealthStatusDegraded:
			result = repository.HealthStatusDegraded
		}
	}
	return string(result)
}

func existingAncestor(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// isDirectoryWritable checks if a directory is writable by creating a temp file.
func isDirectoryWritable(path string) bool {
	file, err := os.CreateTemp(path, ".write_test_*")
	if err != nil {
		return false
	}
	testFile := file.Name()

	_, err = file.WriteString("write test")
	file.Close()
	if removeErr := os.Remove(testFile); removeErr != nil {
		slog.Warn("failed to remove write test file", "path", testFile, "error", removeErr)
	}

	return err == nil
}

// updateHealthStatusGauge updates the Prometheus gauge based on status string
func updateHealthStatusGauge(status string) {
	switch status {
	case "healthy":
		metrics.HealthStatus.Set(2)
	case "degraded":
		metrics.HealthStatus.Set(1)
	default:
		metrics.HealthStatus.Set(0)
	}
}
