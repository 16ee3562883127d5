package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StatsFunc returns the current file count and total stored bytes.
// Backed by the file repository.
type StatsFunc func(ctx context.Context) (files int64, bytes int64, err error)

// StorageCollector exposes database-derived gauges on each scrape, so the
// reported storage totals reflect the metadata rows rather than drifting
// process counters.
type StorageCollector struct {
	stats StatsFunc

	storedFilesCount *prometheus.Desc
	storageUsedBytes *prometheus.Desc
}

// NewStorageCollector creates a collector backed by the given stats query.
func NewStorageCollector(stats StatsFunc) *StorageCollector {
	return &StorageCollector{
		stats: stats,
		storedFilesCount: prometheus.NewDesc(
			"cdn_stored_files_count",
			"Number of stored files",
			nil, nil,
		),
		storageUsedBytes: prometheus.NewDesc(
			"cdn_storage_used_bytes",
			"Total storage used by stored files in bytes",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to Prometheus
func (c *StorageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.storedFilesCount
	ch <- c.storageUsedBytes
}

// Collect fetches current totals from the database and sends them to Prometheus
func (c *StorageCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	files, bytes, err := c.stats(ctx)
	if err != nil {
		slog.Error("failed to query storage metrics", "error", err)
		// Send zero values on error to avoid scrape failure
		files, bytes = 0, 0
	}

	ch <- prometheus.MustNewConstMetric(c.storedFilesCount, prometheus.GaugeValue, float64(files))
	ch <- prometheus.MustNewConstMetric(c.storageUsedBytes, prometheus.GaugeValue, float64(bytes))
}
