package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apictl_cache_hits_total",
		Help: "Total number of response cache hits",
	})

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apictl_cache_misses_total",
		Help: "Total number of response cache misses",
	})

	// CacheStoredBytes tracks bytes written to Redis
	CacheStoredBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apictl_cache_stored_bytes_total",
		Help: "Total bytes of cache entries written to Redis",
	})

	// ConditionalRequestsSent tracks requests carrying If-None-Match or If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apictl_cache_conditional_requests_total",
		Help: "Total number of conditional requests sent",
	})

	// NotModifiedResponses tracks 304 responses answered from cache
	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apictl_cache_not_modified_total",
		Help: "Total number of 304 Not Modified responses served from cache",
	})

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apictl_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // "get", "set", "delete"
)
