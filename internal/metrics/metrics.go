// Package metrics provides Prometheus instrumentation for market clearing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ClearingsTotal counts cleared intervals by area and result code.
	ClearingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clearing_intervals_total",
		Help: "Total number of cleared intervals",
	}, []string{"area", "result"})

	// ActiveSetIterations tracks how many solves the active-set search needed.
	ActiveSetIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clearing_active_set_iterations",
		Help:    "Linear solves per active-set search",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	// FallbacksTotal counts fallback clearings by branch.
	FallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clearing_fallbacks_total",
		Help: "Intervals cleared by a fallback heuristic",
	}, []string{"branch"})

	// SolveErrorsTotal counts failed active-set searches by error kind.
	SolveErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clearing_solve_errors_total",
		Help: "Failed active-set searches",
	}, []string{"kind"})

	// ClearingDuration tracks wall time per interval clearing.
	ClearingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clearing_duration_seconds",
		Help:    "Interval clearing latency in seconds",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	}, []string{"area"})

	// ClearedPrice is the last cleared supply price per area.
	ClearedPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clearing_price",
		Help: "Last cleared supply price ($/MWh)",
	}, []string{"area"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clearing_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clearing_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one HTTP request.
func ObserveRequest(method, path string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
