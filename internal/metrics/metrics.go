// Package metrics exposes Prometheus collectors for the service.
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
	discoveryRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reggie_discovery_runs_total",
			Help: "Total discovery runs, labeled by outcome (ok, degraded, error).",
		},
		[]string{"outcome"},
	)

	pagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reggie_pages_fetched_total",
			Help: "Total candidate pages fetched during discovery, labeled by status.",
		},
		[]string{"status"},
	)

	programsExtractedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reggie_programs_extracted_total",
			Help: "Total programs returned by the extraction service.",
		},
	)

	ruleChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reggie_rule_checks_total",
			Help: "Total watch-rule checks, labeled by result (ok, error).",
		},
		[]string{"result"},
	)

	notificationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reggie_notifications_created_total",
			Help: "Total notifications created by the matcher.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDiscoveryRun increments the discovery run counter.
func ObserveDiscoveryRun(outcome string) {
	discoveryRunsTotal.WithLabelValues(outcome).Inc()
}

// ObservePageFetch increments the fetched page counter.
func ObservePageFetch(status string) {
	pagesFetchedTotal.WithLabelValues(status).Inc()
}

// ObserveProgramsExtracted adds to the extracted program counter.
func ObserveProgramsExtracted(n int) {
	if n > 0 {
		programsExtractedTotal.Add(float64(n))
	}
}

// ObserveRuleCheck increments the rule check counter.
func ObserveRuleCheck(result string) {
	ruleChecksTotal.WithLabelValues(result).Inc()
}

// ObserveNotificationsCreated adds to the notification counter.
func ObserveNotificationsCreated(n int) {
	if n > 0 {
		notificationsCreatedTotal.Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
