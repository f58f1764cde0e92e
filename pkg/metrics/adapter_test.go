package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newAdapterMetrics(reg)

	m.ObserveOperation("local", "read", 10*time.Millisecond, nil)
	m.ObserveOperation("local", "read", 5*time.Millisecond, errors.New("boom"))
	m.RecordBytes("local", "read", 1024)
	m.RecordBytes("local", "read", 1024)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("local", "read", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("local", "read", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("local", "read")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.bytesTotal.WithLabelValues("local", "read")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.operationDuration))
}

func TestNewAdapterMetricsAndTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.prom")

	if !IsEnabled() {
		assert.Nil(t, NewAdapterMetrics())
		require.NoError(t, WriteTextfile(path))
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	}

	InitRegistry()
	require.True(t, IsEnabled())

	m := NewAdapterMetrics()
	require.NotNil(t, m)
	m.ObserveOperation("memory", "write", time.Millisecond, nil)

	require.NoError(t, WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `strata_adapter_operations_total{adapter="memory",operation="write",status="success"} 1`))
}
