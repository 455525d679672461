package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the reconciliation service.
type Metrics struct {
	ClaimsTotal     *prometheus.CounterVec
	SearchesTotal   prometheus.Counter
	SearchDuration  prometheus.Histogram
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics against the given registerer. Tests
// pass a private registry so repeated construction never collides.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClaimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reclink_claims_total",
			Help: "Claim and unclaim operations by method and outcome",
		}, []string{"method", "outcome"}),
		SearchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reclink_candidate_searches_total",
			Help: "Candidate searches executed against the record stores",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reclink_candidate_search_duration_seconds",
			Help:    "Latency of candidate search store scans",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "reclink_match_cache_hits_total",
			Help: "Match cache lookups served without a store scan",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "reclink_match_cache_misses_total",
			Help: "Match cache lookups that triggered a store scan",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reclink_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveRequest records one HTTP request observation.
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	m.RequestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}

// RecordClaim counts one claim-path operation.
func (m *Metrics) RecordClaim(method, outcome string) {
	m.ClaimsTotal.WithLabelValues(method, outcome).Inc()
}
