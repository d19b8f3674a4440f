package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	productsTotal   *prometheus.CounterVec
	batchesTotal    *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
}

// NewMetrics initializes the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catsync_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catsync_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	products := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catsync_products_synced_total",
		Help: "Synchronized products by operation and outcome.",
	}, []string{"operation", "outcome"})
	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catsync_import_batches_total",
		Help: "Completed import batches by operation.",
	}, []string{"operation"})
	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catsync_import_batch_duration_seconds",
		Help:    "Wall clock duration of import batches.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"operation"})
	registry.MustRegister(requests, duration, products, batches, batchDuration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		productsTotal:   products,
		batchesTotal:    batches,
		batchDuration:   batchDuration,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveProduct counts one synchronized product.
func (m *Metrics) ObserveProduct(operation, outcome string) {
	if m == nil {
		return
	}
	m.productsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveBatch records a finished batch and its duration.
func (m *Metrics) ObserveBatch(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(operation).Inc()
	m.batchDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
