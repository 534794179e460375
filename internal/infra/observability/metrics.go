// Package observability exposes Prometheus metrics for the rewards
// engine: ledger mutations, rate-limit rejections, cache behavior, and
// offline queue activity. Served on /metrics when enabled.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerOps counts ledger mutations by kind and outcome
	// ("ok", "rejected", "error").
	LedgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflow_ledger_operations_total",
		Help: "Ledger mutations by transaction kind and outcome.",
	}, []string{"kind", "outcome"})

	// WriteConflicts counts optimistic-concurrency retries.
	WriteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinflow_ledger_write_conflicts_total",
		Help: "Conditional updates refused due to a stale account version.",
	})

	// RateLimitRejections counts refused requests by action.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflow_ratelimit_rejections_total",
		Help: "Requests refused by the sliding-window rate limiter.",
	}, []string{"action"})

	// CacheHits / CacheMisses track read-through cache effectiveness.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinflow_cache_hits_total",
		Help: "Config cache reads served without invoking the loader.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinflow_cache_misses_total",
		Help: "Config cache reads that invoked the loader.",
	})

	// QueueDepth is the current number of deferred offline actions.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflow_offline_queue_depth",
		Help: "Offline actions waiting for replay.",
	})

	// QueueReplays counts drain outcomes per item ("ok", "failed").
	QueueReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflow_offline_queue_replays_total",
		Help: "Offline action replay attempts by outcome.",
	}, []string{"outcome"})
)
