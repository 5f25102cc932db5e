package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fjmerc/softvault/internal/utils"
)

// ActiveUploadCounter reports the number of uploads in flight
type ActiveUploadCounter interface {
	GetActiveCount() int
}

// StorageMetricsCollector reports upload volume state on each scrape
type StorageMetricsCollector struct {
	uploads    ActiveUploadCounter
	uploadsDir string

	activeUploads   *prometheus.Desc
	diskFreeBytes   *prometheus.Desc
	diskUsedPercent *prometheus.Desc
}

// NewStorageMetricsCollector creates a collector for uploadsDir
func NewStorageMetricsCollector(uploads ActiveUploadCounter, uploadsDir string) *StorageMetricsCollector {
	return &StorageMetricsCollector{
		uploads:    uploads,
		uploadsDir: uploadsDir,
		activeUploads: prometheus.NewDesc(
			"softvault_active_uploads",
			"Number of software uploads currently in progress",
			nil, nil,
		),
		diskFreeBytes: prometheus.NewDesc(
			"softvault_disk_free_bytes",
			"Free bytes on the upload volume",
			nil, nil,
		),
		diskUsedPercent: prometheus.NewDesc(
			"softvault_disk_used_percent",
			"Percentage of the upload volume in use (0-100)",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to Prometheus
func (c *StorageMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeUploads
	ch <- c.diskFreeBytes
	ch <- c.diskUsedPercent
}

// Collect sends current values to Prometheus
func (c *StorageMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	active := 0
	if c.uploads != nil {
		active = c.uploads.GetActiveCount()
	}

	ch <- prometheus.MustNewConstMetric(
		c.activeUploads,
		prometheus.GaugeValue,
		float64(active),
	)

	info, err := utils.GetDiskSpace(c.uploadsDir)
	if err != nil {
		// Send zero values on error to avoid scrape failure
		slog.Error("failed to query disk space", "path", c.uploadsDir, "error", err)
		info = &utils.DiskSpaceInfo{}
	}

	ch <- prometheus.MustNewConstMetric(
		c.diskFreeBytes,
		prometheus.GaugeValue,
		float64(info.AvailableBytes),
	)

	ch <- prometheus.MustNewConstMetric(
		c.diskUsedPercent,
		prometheus.GaugeValue,
		info.UsedPercent,
	)
}
