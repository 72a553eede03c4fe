package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheEntries tracks the current number of cached keys.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solcast_cache_entries",
			Help: "Current number of cached keys",
		},
	)

	// PersistErrors tracks failed snapshot writes.
	PersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solcast_cache_persist_errors_total",
			Help: "Total number of failed cache snapshot writes",
		},
	)

	// SnapshotBytes tracks the size of the last written snapshot.
	SnapshotBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solcast_cache_snapshot_bytes",
			Help: "Size in bytes of the last written cache snapshot",
		},
	)
)
