package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics contains Prometheus metrics for model inference.
type ClassifierMetrics struct {
	predictionsTotal  *prometheus.CounterVec
	predictionErrors  *prometheus.CounterVec
	inferenceDuration prometheus.Histogram
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	modelLoadedGauge  prometheus.Gauge
	activeInferences  prometheus.Gauge
	registry          *prometheus.Registry
}

// NewClassifierMetrics creates and registers classifier metrics.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ClassifierMetrics) initMetrics() {
	m.predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesionscan_predictions_total",
			Help: "Total number of classifications partitioned by lesion code.",
		},
		[]string{"code"},
	)
	m.predictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesionscan_prediction_errors_total",
			Help: "Total number of failed classifications",
		},
		[]string{"error_type"},
	)
	m.inferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lesionscan_inference_duration_seconds",
			Help:    "Time taken by a model invocation",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12), // 0.1ms to ~200ms
		},
	)
	m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lesionscan_classifier_cache_hits_total",
		Help: "Classifications answered from the result cache",
	})
	m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lesionscan_classifier_cache_misses_total",
		Help: "Classifications that required a model invocation",
	})
	m.modelLoadedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lesionscan_model_loaded",
		Help: "Whether the classification model is loaded (1) or not (0)",
	})
	m.activeInferences = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lesionscan_active_inferences",
		Help: "Number of classifications currently in progress",
	})
}

func (m *ClassifierMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.predictionsTotal,
		m.predictionErrors,
		m.inferenceDuration,
		m.cacheHits,
		m.cacheMisses,
		m.modelLoadedGauge,
		m.activeInferences,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordPrediction counts a successful classification.
func (m *ClassifierMetrics) RecordPrediction(code string) {
	m.predictionsTotal.WithLabelValues(code).Inc()
}

// RecordPredictionError counts a failed classification.
func (m *ClassifierMetrics) RecordPredictionError(errorType string) {
	m.predictionErrors.WithLabelValues(errorType).Inc()
}

// RecordInference observes the duration of one model invocation.
func (m *ClassifierMetrics) RecordInference(seconds float64) {
	m.inferenceDuration.Observe(seconds)
}

// RecordCacheLookup counts a result cache hit or miss.
func (m *ClassifierMetrics) RecordCacheLookup(hit bool) {
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// SetModelLoaded reports whether the model is available.
func (m *ClassifierMetrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.modelLoadedGauge.Set(1)
		return
	}
	m.modelLoadedGauge.Set(0)
}

// InferenceStarted increments the in-flight gauge and returns the matching
// decrement.
func (m *ClassifierMetrics) InferenceStarted() func() {
	m.activeInferences.Inc()
	return m.activeInferences.Dec
}
