// Package metrics provides process counters and Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// UploadsTotal counts file uploads by status (success, failure)
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdn_uploads_total",
			Help: "Total number of file uploads",
		},
		[]string{"status"},
	)

	// DownloadsTotal counts file downloads by status (success, failure)
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdn_downloads_total",
			Help: "Total number of file downloads",
		},
		[]string{"status"},
	)

	// DeletedTotal counts files removed by the cleanup scheduler
	DeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cdn_deleted_files_total",
			Help: "Total number of files deleted by cleanup",
		},
	)

	// MirrorTasksTotal counts mirror task outcomes (complete, failed, retried)
	MirrorTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdn_mirror_tasks_total",
			Help: "Total number of mirror task outcomes",
		},
		[]string{"status"},
	)

	// CleanupSkippedTotal counts expired files deferred because their mirror
	// copy is not confirmed yet
	CleanupSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cdn_cleanup_skipped_total",
			Help: "Total number of cleanup candidates skipped pending mirror confirmation",
		},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cdn_rate_limited_total",
			Help: "Total number of rate limited requests",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdn_http_requests_total",
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
			Name:    "cdn_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// UploadSizeBytes tracks distribution of uploaded file sizes
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "cdn_upload_size_bytes",
			Help: "Distribution of uploaded file sizes in bytes",
			Buckets: []float64{
				1024,      // 1 KB
				10240,     // 10 KB
				102400,    // 100 KB
				1048576,   // 1 MB
				10485760,  // 10 MB
				104857600, // 100 MB
			},
		},
	)

	// CleanupDuration tracks how long each cleanup run takes
	CleanupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cdn_cleanup_duration_seconds",
			Help:    "Cleanup run duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
	)
)
