// Package metrics documents the Prometheus metrics exposed by the
// booking agent. All metrics are defined in their respective packages
// (cache, calendly, server) via promauto to maintain modularity and
// avoid circular dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by the agent.
// All metrics are automatically registered via promauto in their
// respective packages and exposed on /metrics.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - booking_cache_hits_total (Counter): Cache hits
//   - booking_cache_misses_total (Counter): Cache misses
//   - booking_cache_evictions_total (Counter): Entries evicted under size pressure
//   - booking_cache_oversize_skips_total (Counter): Puts skipped (entry > max bytes)
//   - booking_cache_size_bytes (Gauge): Current estimated cache size
//   - booking_cache_entries (Gauge): Current entry count
//
// Calendly Client Metrics (pkg/calendly):
//   - calendly_requests_total{operation, status} (Counter): Logical requests
//   - calendly_request_duration_seconds{operation} (Histogram): Request latency
//   - calendly_errors_total{class} (Counter): Failed attempts by class
//     (client, server, network)
//   - calendly_retries_total{error_class} (Counter): Retry attempts
//   - calendly_retry_exhausted_total{error_class} (Counter): Requests that
//     exhausted every attempt
//
// HTTP Server Metrics (internal/server):
//   - booking_http_requests_total{path, status} (Counter): Handled requests
//   - booking_http_request_duration_seconds{path} (Histogram): Handler latency
//
// Example Prometheus Queries:
//
//   # Cache hit rate
//   rate(booking_cache_hits_total[5m]) /
//   (rate(booking_cache_hits_total[5m]) + rate(booking_cache_misses_total[5m]))
//
//   # Calendly error rate by class
//   rate(calendly_errors_total[5m])
//
//   # P95 Calendly latency
//   histogram_quantile(0.95, rate(calendly_request_duration_seconds_bucket[5m]))
