package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the proxy's operator-facing counters. Storage errors never
// fail a request, so the counter is the only place they become visible
// besides the log.
type Metrics struct {
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	StorageErrors *prometheus.CounterVec
	UpstreamTime  prometheus.Histogram
	RequestsTotal *prometheus.CounterVec
}

// NewMetrics registers the proxy collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_hits_total",
			Help: "Requests served from the semantic cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_misses_total",
			Help: "Requests forwarded upstream after a cache miss.",
		}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_storage_errors_total",
			Help: "Cache or request-log writes that failed after a successful upstream call.",
		}, []string{"store"}),
		UpstreamTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proxy_upstream_duration_seconds",
			Help:    "Latency of upstream completion calls.",
			Buckets: prometheus.DefBuckets,
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Proxied requests by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.CacheHits, m.CacheMisses, m.StorageErrors, m.UpstreamTime, m.RequestsTotal)
	return m
}
