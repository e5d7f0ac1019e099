// Package cache provides a thread-safe, byte-bounded, in-memory LRU
// cache with namespace-style key prefixes.
//
// The cache backs the Calendly client's read-through paths. Keys are
// namespaced strings ("events_by_email:alice@example.com"), values are
// arbitrary JSON-serializable structures, and the total estimated
// payload size never exceeds the configured ceiling.
//
// # Basic Usage
//
//	c := cache.New(20 * 1024 * 1024) // 20 MB
//	c.Put("events_by_email:alice@example.com", events)
//
//	if v, ok := c.Get("events_by_email:alice@example.com"); ok {
//		events := v.([]calendly.Event)
//		...
//	}
//
// # Invalidation
//
// Writes against the remote system invalidate the entries they could
// have staled, either by exact key:
//
//	c.Invalidate("events_by_email:alice@example.com")
//
// by prefix:
//
//	n := c.InvalidatePrefix("events_by_email:")
//
// or by reverse scan when only an opaque identifier is known:
//
//	key, ok := c.FindKeyContainingValue("events_by_email:", eventUUID)
//	if ok {
//		c.Invalidate(key)
//	}
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - booking_cache_hits_total / booking_cache_misses_total
//   - booking_cache_evictions_total
//   - booking_cache_oversize_skips_total
//   - booking_cache_size_bytes / booking_cache_entries
//
// The cache is purely ephemeral: entries survive only until LRU
// pressure, explicit invalidation, or process restart. There is no TTL.
package cache
