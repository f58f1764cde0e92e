package config

import (
	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/compose"
	"github.com/marmos91/strata/pkg/metrics"
)

// InitializeMetrics creates the adapter metrics collector based on
// configuration.
//
// If metrics are enabled in the configuration the global Prometheus
// registry is initialized and a Prometheus-backed collector is returned.
// Otherwise nil is returned, which makes every InstrumentedAdapter use its
// no-op implementation (zero overhead).
//
// The collector registers its metric families once; call this function a
// single time per process.
func InitializeMetrics(cfg *Config) compose.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}

	metrics.InitRegistry()
	logger.Debug("Metrics collection enabled")

	return metrics.NewAdapterMetrics()
}

// ExportMetrics writes the collected metrics to the configured textfile.
// It does nothing when metrics are disabled or no textfile is configured.
func ExportMetrics(cfg *Config) error {
	if !cfg.Metrics.Enabled || cfg.Metrics.Textfile == "" {
		return nil
	}
	return metrics.WriteTextfile(cfg.Metrics.Textfile)
}

// ConfigureLogging applies the logging section to the global logger.
func ConfigureLogging(cfg *Config) error {
	return logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
}
