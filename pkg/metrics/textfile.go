package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/strata/internal/logger"
)

// WriteTextfile writes the current registry contents to path in the
// Prometheus text exposition format, for node_exporter's textfile
// collector. It is a no-op when metrics are disabled.
//
// The file is written atomically (temp file + rename).
func WriteTextfile(path string) error {
	if !IsEnabled() {
		logger.Debug("Metrics collection disabled, skipping textfile %s", path)
		return nil
	}

	if err := prometheus.WriteToTextfile(path, GetRegistry()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	logger.Debug("Metrics written to %s", path)
	return nil
}
