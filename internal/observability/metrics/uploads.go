package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// UploadMetrics contains Prometheus metrics for the upload store.
type UploadMetrics struct {
	registry *prometheus.Registry

	operationsTotal *prometheus.CounterVec
	uploadSize      prometheus.Histogram
	diskFreeBytes   prometheus.Gauge
}

// NewUploadMetrics creates and registers upload store metrics.
func NewUploadMetrics(registry *prometheus.Registry) (*UploadMetrics, error) {
	m := &UploadMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *UploadMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_operations_total",
			Help: "Total number of upload store operations",
		},
		[]string{"operation", "status"},
	)
	m.uploadSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "uploads_file_size_bytes",
		Help:    "Size of stored uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount8), // 1KB to ~16MB
	})
	m.diskFreeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "uploads_disk_free_bytes",
		Help: "Free bytes on the upload volume at the last check",
	})
}

func (m *UploadMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{m.operationsTotal, m.uploadSize, m.diskFreeBytes}
}

// Describe implements the prometheus.Collector interface.
func (m *UploadMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *UploadMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordSave records a store attempt and, on success, the file size.
func (m *UploadMetrics) RecordSave(sizeBytes int, err error) {
	if err != nil {
		m.operationsTotal.WithLabelValues(OpSave, StatusError).Inc()
		return
	}
	m.operationsTotal.WithLabelValues(OpSave, StatusSuccess).Inc()
	m.uploadSize.Observe(float64(sizeBytes))
}

// RecordRemove records a rollback removal.
func (m *UploadMetrics) RecordRemove(err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.operationsTotal.WithLabelValues(OpRemove, status).Inc()
}

// SetDiskFree records the free space seen by the last disk check.
func (m *UploadMetrics) SetDiskFree(bytes uint64) {
	m.diskFreeBytes.Set(float64(bytes))
}
