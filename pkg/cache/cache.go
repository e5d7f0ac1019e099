package cache

import (
	"container/list"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/acme-dental/booking-agent/pkg/logging"
)

// DefaultMaxBytes is the default cache ceiling (20 MB).
const DefaultMaxBytes = 20 * 1024 * 1024

// entry is the internal representation of a cached value.
// Entries are owned exclusively by the cache; callers never see them.
type entry struct {
	key   string
	value any
	size  int
}

// LRUCache is a thread-safe in-memory cache bounded by total estimated
// byte size. Entries are evicted least-recently-used first when the
// ceiling is exceeded.
//
// Sizes are estimated from the JSON encoding of each value, with a
// plain string representation as fallback for values that do not
// marshal. This is a lower-bound estimate but sufficient for bounding
// memory.
//
// A single mutex serializes every operation. Operations never return
// errors: misses, oversize puts, and serialization failures are normal,
// silent outcomes observable only through absence.
type LRUCache struct {
	mu           sync.Mutex
	maxBytes     int
	currentBytes int
	order        *list.List               // front = most recently used
	entries      map[string]*list.Element // key -> element whose Value is *entry
	logger       zerolog.Logger
}

// New creates an LRUCache with the given byte ceiling.
// A maxBytes <= 0 falls back to DefaultMaxBytes.
func New(maxBytes int) *LRUCache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &LRUCache{
		maxBytes: maxBytes,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		logger:   logging.NewLogger("cache"),
	}
}

// estimateBytes returns the estimated size of value in bytes.
// JSON encoding first, string representation as fallback.
func estimateBytes(value any) int {
	data, err := json.Marshal(value)
	if err != nil {
		return len(fmt.Sprint(value))
	}
	return len(data)
}

// serialize returns the canonical textual form of value, used by the
// reverse value scan. Mirrors the fallback strategy of estimateBytes.
func serialize(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}

// Get returns the cached value for key and promotes it to
// most-recently-used. The second return value reports whether the key
// was present.
func (c *LRUCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		cacheMisses.Inc()
		return nil, false
	}

	c.order.MoveToFront(elem)
	cacheHits.Inc()
	return elem.Value.(*entry).value, true
}

// Put inserts or overwrites key. If the value alone exceeds the cache
// ceiling the call is a silent no-op. Otherwise least-recently-used
// entries are evicted until the new entry fits, and it is inserted at
// the most-recently-used position.
func (c *LRUCache) Put(key string, value any) {
	size := estimateBytes(value)

	if size > c.maxBytes {
		cacheOversizeSkips.Inc()
		c.logger.Debug().
			Str("key", key).
			Int("size", size).
			Int("max_bytes", c.maxBytes).
			Msg("Skipping oversize cache entry")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(key)

	for c.currentBytes+size > c.maxBytes && c.order.Len() > 0 {
		c.evictOldestLocked()
	}

	elem := c.order.PushFront(&entry{key: key, value: value, size: size})
	c.entries[key] = elem
	c.currentBytes += size
	c.updateGaugesLocked()
}

// Invalidate removes key and reports whether it existed.
func (c *LRUCache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.removeLocked(key)
	if removed {
		c.updateGaugesLocked()
	}
	return removed
}

// InvalidatePrefix removes every key starting with prefix and returns
// the number removed. The removal is atomic: readers never observe a
// partially invalidated prefix.
func (c *LRUCache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		c.removeLocked(key)
	}
	if len(keys) > 0 {
		c.updateGaugesLocked()
	}
	return len(keys)
}

// Clear removes every entry and resets the byte total.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.currentBytes = 0
	c.updateGaugesLocked()
}

// Has reports whether key is present without promoting it.
func (c *LRUCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	return ok
}

// CurrentBytes returns the total estimated bytes currently stored.
func (c *LRUCache) CurrentBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBytes
}

// Len returns the number of entries currently stored.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// FindKeyContainingValue scans entries whose key starts with prefix and
// returns the first key whose serialized value contains needle as a
// substring. The scan is read-only: no entry is promoted. Returns
// ("", false) when no candidate matches.
//
// First match wins. Under the access patterns of this system a given
// identifier appears in at most one entry per namespace.
func (c *LRUCache) FindKeyContainingValue(prefix, needle string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if strings.Contains(serialize(elem.Value.(*entry).value), needle) {
			return key, true
		}
	}
	return "", false
}

// removeLocked deletes key if present, adjusting the byte total.
// Caller must hold c.mu.
func (c *LRUCache) removeLocked(key string) bool {
	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.Remove(elem)
	delete(c.entries, key)
	c.currentBytes -= elem.Value.(*entry).size
	return true
}

// evictOldestLocked drops the least-recently-used entry.
// Caller must hold c.mu.
func (c *LRUCache) evictOldestLocked() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	ent := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.entries, ent.key)
	c.currentBytes -= ent.size
	cacheEvictions.Inc()
	c.logger.Debug().
		Str("key", ent.key).
		Int("size", ent.size).
		Msg("Evicted cache entry")
}

// updateGaugesLocked refreshes the size gauges. Caller must hold c.mu.
func (c *LRUCache) updateGaugesLocked() {
	cacheSizeBytes.Set(float64(c.currentBytes))
	cacheEntries.Set(float64(len(c.entries)))
}
