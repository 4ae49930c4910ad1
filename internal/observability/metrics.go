// Package observability exposes Prometheus collectors for the HTTP
// surface and the closure engine.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects application metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	closureBatches  prometheus.Counter
	closureRecords  prometheus.Counter
	closureFailures *prometheus.CounterVec
}

// NewMetrics initialises the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paycycle_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paycycle_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paycycle_closure_batches_total",
		Help: "Completed pay-period closure batches.",
	})
	records := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paycycle_closure_records_moved_total",
		Help: "Payroll records moved to history by closure batches.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paycycle_closure_failures_total",
		Help: "Closure invocations aborted, by failing state.",
	}, []string{"state"})
	registry.MustRegister(requests, duration, batches, records, failures)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		closureBatches:  batches,
		closureRecords:  records,
		closureFailures: failures,
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

// ClosureCompleted records a successful closure batch.
func (m *Metrics) ClosureCompleted(recordsMoved int) {
	if m == nil {
		return
	}
	m.closureBatches.Inc()
	m.closureRecords.Add(float64(recordsMoved))
}

// ClosureFailed records an aborted closure invocation.
func (m *Metrics) ClosureFailed(state string) {
	if m == nil {
		return
	}
	m.closureFailures.WithLabelValues(state).Inc()
}

// Registerer exposes the registry for custom collectors.
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
