package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks successful lookups.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// cacheMisses tracks lookups for absent keys.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// cacheEvictions tracks entries removed by LRU pressure.
	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_cache_evictions_total",
			Help: "Total number of entries evicted under size pressure",
		},
	)

	// cacheOversizeSkips tracks puts dropped because a single entry
	// exceeded the cache ceiling.
	cacheOversizeSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_cache_oversize_skips_total",
			Help: "Total number of puts skipped because the entry exceeded max bytes",
		},
	)

	// cacheSizeBytes tracks the current estimated cache size.
	cacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_cache_size_bytes",
			Help: "Current estimated cache size in bytes",
		},
	)

	// cacheEntries tracks the current entry count.
	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_cache_entries",
			Help: "Current number of cache entries",
		},
	)
)
