// Package metrics exposes Prometheus instrumentation for the polling
// bridge. Collectors are registered on the default registry and served
// through Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "enteliwatch"

var (
	// PollsTotal counts snapshot polling ticks by outcome.
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "polls_total",
		Help:      "Snapshot polling ticks by outcome.",
	}, []string{"status"})

	// TrendRequestsTotal counts trend pipeline runs by range and outcome.
	TrendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trend_requests_total",
		Help:      "Trend pipeline runs by range and outcome.",
	}, []string{"range", "status"})

	// TrendPagesFetched counts log-buffer pages retrieved from the gateway.
	TrendPagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trend_pages_fetched_total",
		Help:      "Log-buffer pages retrieved from the gateway.",
	})

	// TrendRecordsReturned observes output sizes of completed trend runs.
	TrendRecordsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "trend_records_returned",
		Help:      "Output record counts of completed trend runs.",
		Buckets:   []float64{10, 30, 60, 100, 150, 300, 500},
	})

	// GatewayRequestDuration observes gateway round-trip latency.
	GatewayRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_request_duration_seconds",
		Help:      "Latency of gateway REST calls.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
