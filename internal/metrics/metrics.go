// Package metrics holds Prometheus collectors for the acquisition pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Source attempt outcomes
const (
	OutcomeUnavailable = "unavailable"
	OutcomeEmpty       = "empty"
	OutcomeSuccess     = "success"
	OutcomePanic       = "panic"
)

// Cache request outcomes
const (
	CacheHit          = "hit"
	CacheRefreshed    = "refreshed"
	CacheStaleServed  = "stale_served"
	CacheEmptyServed  = "empty_served"
	CacheSharedFlight = "shared_flight"
)

var (
	SourceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradewatch_source_attempts_total",
		Help: "Source fetch attempts by source and outcome",
	}, []string{"source", "outcome"})

	SourceRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradewatch_source_records",
		Help: "Records returned by the most recent successful fetch per source",
	}, []string{"source"})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradewatch_cache_requests_total",
		Help: "Record requests by cache outcome",
	}, []string{"outcome"})

	RefreshLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradewatch_refresh_latency_seconds",
		Help:    "Latency of full refresh passes over all sources",
		Buckets: prometheus.DefBuckets,
	})

	NameLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradewatch_name_lookups_total",
		Help: "Ticker name resolutions by outcome",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradewatch_http_requests_total",
		Help: "API requests by method and status class",
	}, []string{"method", "class"})
)
