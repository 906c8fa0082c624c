package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics covers the web layer: per-route traffic, authentication
// outcomes, upload sizes and template rendering.
type HTTPMetrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
	responseSize    *prometheus.HistogramVec
	inFlight        prometheus.Gauge

	authOperations *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	uploadSize     prometheus.Histogram

	renderDuration *prometheus.HistogramVec
	renderErrors   *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers the web layer metrics.
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	// route is the echo route pattern, never the raw URL
	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"method", "route", "status_code"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency including classification",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	}, []string{"method", "route"})

	m.requestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_request_errors_total",
		Help: "HTTP responses with a 4xx or 5xx status",
	}, []string{"route", "class"})

	m.responseSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "Size of HTTP responses",
		Buckets: prometheus.ExponentialBuckets(BucketStart100B, BucketFactor10, BucketCount6),
	}, []string{"route"})

	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Requests currently being served",
	})

	m.authOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_auth_operations_total",
		Help: "Signup, login and logout attempts by outcome",
	}, []string{"operation", "status"})

	m.rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the authentication rate limiter",
	}, []string{"route"})

	m.uploadSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "http_upload_size_bytes",
		Help:    "Size of uploaded lesion images",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount8), // 1KB to 16MB
	})

	m.renderDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_template_render_duration_seconds",
		Help:    "Time taken to render HTML views",
		Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
	}, []string{"template"})

	m.renderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_template_render_errors_total",
		Help: "HTML views that failed to render",
	}, []string{"template"})
}

func (m *HTTPMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.requestErrors,
		m.responseSize,
		m.inFlight,
		m.authOperations,
		m.rateLimited,
		m.uploadSize,
		m.renderDuration,
		m.renderErrors,
	}
}

// Describe implements the prometheus.Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordHTTPRequest records a finished request. Statuses of 400 and above
// also count as client or server errors.
func (m *HTTPMetrics) RecordHTTPRequest(method, route string, statusCode int, seconds float64, sizeBytes int64) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(seconds)
	m.responseSize.WithLabelValues(route).Observe(float64(sizeBytes))

	switch {
	case statusCode >= 500:
		m.requestErrors.WithLabelValues(route, "server").Inc()
	case statusCode >= 400:
		m.requestErrors.WithLabelValues(route, "client").Inc()
	}
}

// RequestStarted increments the in-flight gauge and returns the matching
// decrement.
func (m *HTTPMetrics) RequestStarted() func() {
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// RecordAuthOperation records a signup, login or logout outcome.
func (m *HTTPMetrics) RecordAuthOperation(operation, status string) {
	m.authOperations.WithLabelValues(operation, status).Inc()
}

// RecordRateLimited counts a request denied by the rate limiter.
func (m *HTTPMetrics) RecordRateLimited(route string) {
	m.rateLimited.WithLabelValues(route).Inc()
}

// RecordUploadSize observes the byte size of an accepted upload.
func (m *HTTPMetrics) RecordUploadSize(sizeBytes int) {
	m.uploadSize.Observe(float64(sizeBytes))
}

// RecordTemplateRender records template rendering duration
func (m *HTTPMetrics) RecordTemplateRender(template string, seconds float64) {
	m.renderDuration.WithLabelValues(template).Observe(seconds)
}

// RecordTemplateRenderError records a template rendering error
func (m *HTTPMetrics) RecordTemplateRenderError(template string) {
	m.renderErrors.WithLabelValues(template).Inc()
}
