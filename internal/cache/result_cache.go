package cache

import (
	"encoding/json"
	"time"
)

// entryOverhead approximates the bookkeeping bytes per cached result on
// top of the payload itself.
const entryOverhead = 128

// ResultCache stores tool invocation results keyed by request
// fingerprint, with per-entry TTLs from the tool's tier policy.
type ResultCache struct {
	cache *Cache[string, json.RawMessage]
}

// NewResultCache creates a result cache bounded by maxEntries and
// maxBytes (0 disables the byte budget).
func NewResultCache(maxEntries int, maxBytes int64) *ResultCache {
	return &ResultCache{
		cache: New[string, json.RawMessage](maxEntries, maxBytes, 30*time.Minute),
	}
}

// Get returns the cached payload for a fingerprint, if fresh.
func (rc *ResultCache) Get(fingerprint string) (json.RawMessage, bool) {
	return rc.cache.Get(fingerprint)
}

// Put stores a payload under the fingerprint with the given TTL. The
// payload length plus a fixed overhead counts against the byte budget.
func (rc *ResultCache) Put(fingerprint string, payload json.RawMessage, ttl time.Duration) {
	rc.cache.SetWithTTL(fingerprint, payload, ttl, int64(len(payload))+entryOverhead)
}

// Invalidate removes a single fingerprint. Caller-driven, used when a
// tool's underlying data source changes.
func (rc *ResultCache) Invalidate(fingerprint string) {
	rc.cache.Invalidate(fingerprint)
}

// Flush removes all entries.
func (rc *ResultCache) Flush() {
	rc.cache.Flush()
}

// Sweep reclaims expired entries and returns the number removed.
func (rc *ResultCache) Sweep() int {
	return rc.cache.Sweep()
}

// Stats returns hit/miss/eviction counters.
func (rc *ResultCache) Stats() Stats {
	return rc.cache.Stats()
}

// Len returns the number of cached results.
func (rc *ResultCache) Len() int {
	return rc.cache.Len()
}
