package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/strata/pkg/compose"
)

// adapterMetrics is the Prometheus implementation of compose.Metrics.
//
// This implementation collects metrics about adapter operations including:
//   - Operation counts by adapter, operation and status
//   - Operation latency
//   - Bytes read and written
//   - Error counts
type adapterMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	bytesTotal        *prometheus.CounterVec
}

// NewAdapterMetrics creates a new Prometheus-backed compose.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// causes compose.InstrumentedAdapter to use its built-in no-op
// implementation. Every call returns the same collectors.
func NewAdapterMetrics() compose.Metrics {
	if !IsEnabled() {
		return nil
	}
	sharedOnce.Do(func() {
		shared = newAdapterMetrics(GetRegistry())
	})
	return shared
}

var (
	shared     *adapterMetrics
	sharedOnce sync.Once
)

func newAdapterMetrics(reg prometheus.Registerer) *adapterMetrics {
	return &adapterMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_adapter_operations_total",
				Help: "Total number of adapter operations by adapter, operation and status",
			},
			[]string{"adapter", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "strata_adapter_operation_duration_seconds",
				Help: "Duration of adapter operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
					5.0,    // 5s
					30.0,   // 30s
				},
			},
			[]string{"adapter", "operation"},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_adapter_errors_total",
				Help: "Total number of adapter operation errors by adapter and operation",
			},
			[]string{"adapter", "operation"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_adapter_bytes_total",
				Help: "Total bytes read or written by adapter operations",
			},
			[]string{"adapter", "operation"},
		),
	}
}

// ObserveOperation implements compose.Metrics.ObserveOperation
func (m *adapterMetrics) ObserveOperation(adapter, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.errorsTotal.WithLabelValues(adapter, operation).Inc()
	}

	m.operationsTotal.WithLabelValues(adapter, operation, status).Inc()
	m.operationDuration.WithLabelValues(adapter, operation).Observe(duration.Seconds())
}

// RecordBytes implements compose.Metrics.RecordBytes
func (m *adapterMetrics) RecordBytes(adapter, operation string, bytes int64) {
	m.bytesTotal.WithLabelValues(adapter, operation).Add(float64(bytes))
}
