// Package metrics registers the process-wide Prometheus collectors for
// cache size, lookup outcomes, and replica-group resolution latency. It
// never touches cache internals directly — callers in the cache package
// (its mutation paths, ResolveProxies, and replica-group resolution) call
// the recording functions here at the point an event naturally occurs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gridlocator"

var (
	registerOnce sync.Once

	cacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Current number of entries (server adapters and replica groups) in the cache.",
	})

	lookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lookups_total",
		Help:      "Total ResolveProxies calls, labeled by outcome.",
	}, []string{"outcome"})

	resolutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "resolution_duration_seconds",
		Help:      "Time to resolve a replica group to proxies, by policy and phase.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"policy", "phase"})

	sentinelLoadTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sentinel_load_total",
		Help:      "Count of load queries that fell back to the sentinel value because the node was unreachable or absent.",
	})

	roundRobinCursor = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "round_robin_cursor",
		Help:      "Current round-robin cursor position for a replica group.",
	}, []string{"replica_group_id"})
)

// Register adds every collector to prometheus.DefaultRegisterer. Safe to
// call more than once; only the first call takes effect.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(cacheSize, lookupsTotal, resolutionDuration, sentinelLoadTotal, roundRobinCursor)
	})
}

// SetCacheSize records the cache's current entry count.
func SetCacheSize(n int) {
	cacheSize.Set(float64(n))
}

// ObserveLookup records a ResolveProxies outcome ("ok", "not_found", "error").
func ObserveLookup(outcome string) {
	lookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveResolutionDuration records how long a resolution phase took for a
// given policy name.
func ObserveResolutionDuration(policy, phase string, seconds float64) {
	resolutionDuration.WithLabelValues(policy, phase).Observe(seconds)
}

// IncSentinelLoad records one occurrence of the sentinel load value being
// returned in place of a real sample.
func IncSentinelLoad() {
	sentinelLoadTotal.Inc()
}

// SetRoundRobinCursor records a replica group's current cursor position.
func SetRoundRobinCursor(replicaGroupID string, cursor int) {
	roundRobinCursor.WithLabelValues(replicaGroupID).Set(float64(cursor))
}
