// Package cache provides an optional Redis-backed cache for GET responses.
//
// It is off unless a Redis address is configured: a pagination session must
// see the listing as the server returns it, so the cache only ever answers
// with an entry the server has confirmed through a conditional request
// (ETag / If-None-Match, or Last-Modified / If-Modified-Since) or one that is
// still fresh under Cache-Control max-age / Expires.
//
// # Basic Usage
//
//	manager := cache.NewManager(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
//
//	key := cache.KeyForRequest(req)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then:
//		entry, _ = cache.ResponseToEntry(resp)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// Keys carry a digest of the request credentials so two accounts never read
// each other's listings.
//
// # Metrics
//
//   - apictl_cache_hits_total - cache hits
//   - apictl_cache_misses_total - cache misses
//   - apictl_cache_stored_bytes_total - bytes written to Redis
//   - apictl_cache_conditional_requests_total - conditional requests sent
//   - apictl_cache_not_modified_total - 304 responses served from cache
//   - apictl_cache_errors_total{operation} - Redis operation errors
package cache
