// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lookups tracks address lookups by outcome
	Lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketdata_lookups_total",
			Help: "Total number of address lookups",
		},
		[]string{"outcome"}, // "hit", "computed", "not_found", "unavailable", "error"
	)

	// LookupDuration tracks end-to-end lookup latency
	LookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketdata_lookup_duration_seconds",
			Help:    "End-to-end lookup duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// CacheHits tracks market record cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketdata_cache_hits_total",
			Help: "Total number of market record cache hits",
		},
	)

	// CacheMisses tracks cache misses by reason
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketdata_cache_misses_total",
			Help: "Total number of market record cache misses",
		},
		[]string{"reason"}, // "absent", "stale", "invalid"
	)

	// UpstreamRequests tracks requests to external data sources
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketdata_upstream_requests_total",
			Help: "Total number of upstream data source requests",
		},
		[]string{"source", "status"}, // source: "acs", "pep", "flows", "geocoder", "walkscore"; status: "ok", "error"
	)
)
