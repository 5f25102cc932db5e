package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Serve variants used as the "variant" label on DownloadsTotal
const (
	VariantSoftware    = "software"
	VariantSoftwareRaw = "software_raw"
	VariantImage       = "image"
	VariantPreview     = "preview"
)

// Counter metrics (monotonically increasing)
var (
	// UploadsTotal counts software uploads by status (success, rejected, too_large, failure)
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "softvault_uploads_total",
			Help: "Total number of software uploads",
		},
		[]string{"status"},
	)

	// DownloadsTotal counts serve requests by variant and outcome
	// (success, bad_request, forbidden, not_found, error)
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "softvault_downloads_total",
			Help: "Total number of artifact serve requests",
		},
		[]string{"variant", "status"},
	)

	// AuditFailuresTotal counts download events that could not be recorded
	AuditFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "softvault_audit_failures_total",
			Help: "Total number of download audit records that failed to persist",
		},
	)

	// PathEscapesTotal counts filenames that resolved outside their category
	PathEscapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "softvault_path_escapes_total",
			Help: "Total number of rejected path escape attempts",
		},
		[]string{"variant"},
	)

	// DetectedContentTypesTotal counts sniffed content types of accepted uploads
	DetectedContentTypesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "softvault_upload_detected_types_total",
			Help: "Sniffed content types of accepted uploads",
		},
		[]string{"mime"},
	)

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "softvault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// Histogram metrics (distributions)
var (
	// HTTPRequestDuration tracks HTTP request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "softvault_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"method", "path"},
	)

	// UploadSizeBytes tracks distribution of accepted upload sizes
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "softvault_upload_size_bytes",
			Help: "Distribution of uploaded software sizes in bytes",
			Buckets: []float64{
				1048576,   // 1 MB
				10485760,  // 10 MB
				52428800,  // 50 MB
				104857600, // 100 MB
				209715200, // 200 MB
				314572800, // 300 MB
			},
		},
	)

	// UploadDuration tracks end-to-end upload processing time
	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "softvault_upload_duration_seconds",
			Help:    "Software upload processing time in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// DownloadSizeBytes tracks distribution of served artifact sizes
	DownloadSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "softvault_download_size_bytes",
			Help: "Distribution of served artifact sizes in bytes",
			Buckets: []float64{
				10240,     // 10 KB
				102400,    // 100 KB
				1048576,   // 1 MB
				10485760,  // 10 MB
				104857600, // 100 MB
				314572800, // 300 MB
			},
		},
		[]string{"variant"},
	)
)

// Health check metrics
var (
	// HealthStatus is a gauge representing current health status
	// Values: 0 = unhealthy, 1 = degraded, 2 = healthy
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "softvault_health_status",
			Help: "Current health status (0=unhealthy, 1=degraded, 2=healthy)",
		},
	)

	// HealthChecksTotal counts total health check calls by status
	HealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "softvault_health_checks_total",
			Help: "Total number of health checks performed",
		},
		[]string{"status"},
	)
)
