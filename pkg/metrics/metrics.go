// Package metrics exports the Prometheus metrics of apictl.
// All metrics are defined in their respective packages (pagination, client,
// cache, ratelimit) and registered via promauto on the default registry.
//
// A CLI run is short-lived, so metrics are not scraped. Instead they are
// written once on exit in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registry is the default Prometheus registry used by apictl.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics written by WriteTextfile.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// Prefix is the namespace shared by all apictl metrics.
const Prefix = "apictl_"

// WriteTextfile writes every apictl metric to path atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, apictlOnly{Gatherer}); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// apictlOnly drops the Go runtime and process collectors of the default
// registry.
type apictlOnly struct {
	prometheus.Gatherer
}

func (g apictlOnly) Gather() ([]*dto.MetricFamily, error) {
	families, err := g.Gatherer.Gather()
	out := families[:0]
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), Prefix) {
			out = append(out, mf)
		}
	}
	return out, err
}

// Metrics Documentation
//
// Pagination Metrics (pkg/pagination):
//   - apictl_pages_fetched_total{source} (Counter): Pages decoded and yielded per listing label
//   - apictl_page_fetch_errors_total{kind} (Counter): Failed page requests by kind (transport, decode, status)
//   - apictl_cursor_errors_total (Counter): Cursor fields holding a non-string value
//
// Request Metrics (pkg/client):
//   - apictl_requests_total{host, status} (Counter): Requests by host and HTTP status
//   - apictl_request_duration_seconds{host} (Histogram): Request duration by host
//   - apictl_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - apictl_retries_total{error_class} (Counter): Retry attempts by error class
//   - apictl_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - apictl_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - apictl_cache_hits_total (Counter): Response cache hits
//   - apictl_cache_misses_total (Counter): Response cache misses
//   - apictl_cache_stored_bytes_total (Counter): Bytes of entries written to Redis
//   - apictl_cache_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - apictl_cache_not_modified_total (Counter): 304 responses answered from cache
//   - apictl_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - apictl_rate_limit_remaining{host} (Gauge): Requests remaining in the current window
//   - apictl_rate_limit_waits_total{host} (Counter): Requests held until the window reset
//   - apictl_rate_limit_blocks_total{host} (Counter): Requests refused on an exhausted quota
//   - apictl_rate_limit_throttles_total{host} (Counter): Requests slowed near the end of the quota
//
// Example Prometheus Queries:
//
//   # Pages per listing
//   sum by (source) (apictl_pages_fetched_total)
//
//   # Cache Hit Rate
//   apictl_cache_hits_total / (apictl_cache_hits_total + apictl_cache_misses_total)
//
//   # Hosts close to their quota
//   apictl_rate_limit_remaining < 10
