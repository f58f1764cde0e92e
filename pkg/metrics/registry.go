// Package metrics collects Prometheus metrics for strata mounts.
//
// Collection is opt-in. Until InitRegistry is called every constructor in
// this package returns nil, and compose.InstrumentedAdapter falls back to
// its no-op implementation.
//
// Metrics are written once, at exit, with WriteTextfile.
//
//	metrics.InitRegistry()
//	m := metrics.NewAdapterMetrics()
//	adapter := compose.NewInstrumentedAdapter("docs", inner, m)
//	...
//	_ = metrics.WriteTextfile("/var/lib/node_exporter/strata.prom")
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry holds every strata collector; nil until InitRegistry
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry enables collection by creating the process-wide registry.
// Later calls are no-ops.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the process-wide registry, or nil when collection is
// disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return registry != nil
}
