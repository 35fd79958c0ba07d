package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels only carry values from fixed sets (mode, status, route). Network
// names come from clients and stay out of the label sets.
var (
	// SolvesTotal counts solve attempts by outcome.
	SolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcopf_solves_total",
			Help: "Total number of DC optimal power flow solves",
		},
		[]string{"mode", "status"},
	)

	// SolveDuration measures the wall time of a solve across all islands.
	SolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dcopf_solve_duration_seconds",
			Help:    "Duration of DC optimal power flow solves in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"mode"},
	)

	// Islands is the island count of the last network built.
	Islands = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dcopf_islands",
			Help: "Number of islands in the last network built",
		},
	)

	// PotentialErrors counts model errors that caused a solve to be skipped.
	PotentialErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dcopf_potential_errors_total",
			Help: "Total number of model errors detected before solving",
		},
	)

	// HTTPRequestsTotal counts requests served by the web service.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcopf_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveSolve records one solve attempt.
func ObserveSolve(mode, status string, d time.Duration) {
	SolvesTotal.WithLabelValues(mode, status).Inc()
	SolveDuration.WithLabelValues(mode).Observe(d.Seconds())
}
