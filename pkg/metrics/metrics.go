// Package metrics documents the Prometheus metrics exposed by the proxy.
// All metrics are defined in their respective packages (proxy, cache,
// ratelimit, upstream) via promauto to maintain modularity and avoid
// circular dependencies; this package is the reference inventory.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the proxy. All
// metrics are automatically registered via promauto in their packages and
// served by the /metrics endpoint.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/proxy):
//   - solcast_requests_total{endpoint, result} (Counter): Requests by endpoint
//     and result (HIT, MISS, STALE, FALLBACK, rate_limited, upstream_error,
//     transport_error, not_found)
//   - solcast_request_duration_seconds{endpoint} (Histogram): Decision-engine
//     latency per endpoint, upstream call included
//
// Cache Metrics (pkg/cache):
//   - solcast_cache_entries (Gauge): Current number of cached keys
//   - solcast_cache_persist_errors_total (Counter): Failed snapshot writes
//   - solcast_cache_snapshot_bytes (Gauge): Size of the last written snapshot
//
// Admission Metrics (pkg/ratelimit):
//   - solcast_admissions_denied_total (Counter): Calls denied by the
//     inter-call interval
//   - solcast_cooldown_overrides_total{reason} (Counter): Failure cool-downs
//     applied (reason: upstream_error, exhausted)
//
// Upstream Metrics (pkg/upstream):
//   - solcast_upstream_requests_total{account, class} (Counter): Upstream
//     calls by account (primary, fallback) and outcome class
//   - solcast_upstream_request_duration_seconds{account} (Histogram):
//     Upstream call latency by account
//
// Example Prometheus Queries:
//
//   # Cache hit rate
//   sum(rate(solcast_requests_total{result="HIT"}[5m])) /
//   sum(rate(solcast_requests_total[5m]))
//
//   # Stale-serving rate (degraded operation indicator)
//   rate(solcast_requests_total{result="STALE"}[5m])
//
//   # Fallback account engagement
//   rate(solcast_upstream_requests_total{account="fallback"}[1h])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(solcast_request_duration_seconds_bucket[5m]))
