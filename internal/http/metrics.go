package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the annotation server's Prometheus collectors on a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	annotationsSaved *prometheus.CounterVec
	saveErrors       *prometheus.CounterVec
}

// NewMetrics creates and registers the server metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ttseval_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		annotationsSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ttseval_annotations_saved_total",
				Help: "Total number of annotations written to the store",
			},
			[]string{"endpoint"}, // endpoint: single, multiple
		),
		saveErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ttseval_annotation_save_errors_total",
				Help: "Total number of rejected or failed save requests",
			},
			[]string{"endpoint", "error_type"}, // error_type: validation, store
		),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.annotationsSaved,
		m.saveErrors,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

func (m *Metrics) saved(endpoint string, n int) {
	m.annotationsSaved.WithLabelValues(endpoint).Add(float64(n))
}

func (m *Metrics) saveFailed(endpoint, errorType string) {
	m.saveErrors.WithLabelValues(endpoint, errorType).Inc()
}
