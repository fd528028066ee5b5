package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "entrylog"

var (
	// EntrySavesTotal counts lifecycle outcomes: published, draft, updated,
	// rejected, duplicate_slug, failed.
	EntrySavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_saves_total",
			Help:      "Entry create/edit attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SearchesTotal counts search requests; result is "empty" when the query
	// had no terms and "executed" otherwise.
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Full-text searches by result",
		},
		[]string{"result"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(EntrySavesTotal, SearchesTotal, httpRequestDuration, httpRequestsTotal)
}
