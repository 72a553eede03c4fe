// Package cache provides the durable response store backing the proxy.
//
// The store keeps the last successful upstream response per cache key in
// memory and mirrors the whole map to a JSON snapshot on disk after every
// write. Features:
//
// - One entry per key, replaced wholesale on every successful fetch
// - Wall-clock age computation with an exclusive freshness boundary
// - Full-snapshot persistence (write-to-temp-then-rename, crash safe)
// - Cold start from a missing or corrupt snapshot is never fatal
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Open the store; loads ./data/cache.json if present
//	store := cache.Open("./data", logger)
//
//	// Build a key from path and ordered query parameters
//	key := cache.NewKey("site-1", "forecasts", params)
//
//	// Freshness check (age must satisfy 0 <= age < ttl)
//	if store.IsFresh(key, 2*time.Hour) {
//		entry, age, _ := store.Get(key)
//		// serve entry.Body with age
//	}
//
//	// Store a fetched response; persists the snapshot before returning
//	store.Set(key, body, "application/json")
//
// # Persistence
//
// The snapshot is a single pretty-printed JSON file holding the complete
// key to entry mapping. It is rewritten in full on every Set; write cost is
// O(total entries) which is acceptable because writes are bounded by the
// upstream rate-limit interval (hours), not by request volume. Persistence
// failures are logged and swallowed: the store degrades to memory-only
// rather than failing requests.
//
// # Metrics
//
//   - solcast_cache_entries - Current number of cached keys
//   - solcast_cache_persist_errors_total - Failed snapshot writes
//   - solcast_cache_snapshot_bytes - Size of the last written snapshot
package cache
