// Package metrics exposes Prometheus instrumentation for generation,
// transport and archive activity. Grounded on dittofs's
// pkg/metrics/{cache,s3}.go pattern: a package-level registry gate so
// every metric constructor returns nil when disabled, and every method
// on the returned type is a nil-receiver no-op — callers never branch
// on whether metrics are enabled.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection and returns the registry so
// callers can mount it behind an HTTP handler.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

func getRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// Metrics is the counter/histogram set for one running process.
// A nil *Metrics is valid and every method is a no-op, so callers can
// unconditionally call m.Observe... without checking IsEnabled first.
type Metrics struct {
	generationsTotal  *prometheus.CounterVec
	generationSeconds *prometheus.HistogramVec
	filesAdded        *prometheus.CounterVec
	filesModified     *prometheus.CounterVec
	filesDeleted      *prometheus.CounterVec
	archiveBytes      *prometheus.HistogramVec
	reconnectsTotal   *prometheus.CounterVec
}

// New creates a Metrics instance, or returns nil if InitRegistry was
// never called.
func New() *Metrics {
	if !IsEnabled() {
		return nil
	}
	reg := getRegistry()

	return &Metrics{
		generationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpvault_generations_total",
				Help: "Total number of completed generations by site and outcome",
			},
			[]string{"site", "outcome"}, // outcome: "changed", "up_to_date", "failed"
		),
		generationSeconds: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftpvault_generation_duration_seconds",
				Help:    "Duration of a full generation run per site",
				Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600},
			},
			[]string{"site"},
		),
		filesAdded: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpvault_files_added_total",
				Help: "Total number of files classified as Added",
			},
			[]string{"site"},
		),
		filesModified: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpvault_files_modified_total",
				Help: "Total number of files classified as Modified",
			},
			[]string{"site"},
		),
		filesDeleted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpvault_files_deleted_total",
				Help: "Total number of files classified as Deleted",
			},
			[]string{"site"},
		),
		archiveBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftpvault_archive_bytes",
				Help:    "Size in bytes of generated archives",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"site"},
		),
		reconnectsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpvault_transport_reconnects_total",
				Help: "Total number of one-shot walker reconnects",
			},
			[]string{"site"},
		),
	}
}

func (m *Metrics) ObserveGeneration(site string, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationsTotal.WithLabelValues(site, outcome).Inc()
	m.generationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

func (m *Metrics) RecordAdded(site string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.filesAdded.WithLabelValues(site).Add(float64(n))
}

func (m *Metrics) RecordModified(site string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.filesModified.WithLabelValues(site).Add(float64(n))
}

func (m *Metrics) RecordDeleted(site string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.filesDeleted.WithLabelValues(site).Add(float64(n))
}

func (m *Metrics) RecordArchiveSize(site string, bytes int64) {
	if m == nil {
		return
	}
	m.archiveBytes.WithLabelValues(site).Observe(float64(bytes))
}

func (m *Metrics) RecordReconnect(site string) {
	if m == nil {
		return
	}
	m.reconnectsTotal.WithLabelValues(site).Inc()
}
