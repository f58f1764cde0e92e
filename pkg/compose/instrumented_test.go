package compose

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/adapter/memory"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/storagetest"
)

// recordingMetrics is an in-memory Metrics implementation for tests.
type recordingMetrics struct {
	mu         sync.Mutex
	operations map[string]int
	errors     map[string]int
	bytes      map[string]int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		operations: make(map[string]int),
		errors:     make(map[string]int),
		bytes:      make(map[string]int64),
	}
}

func (m *recordingMetrics) ObserveOperation(adapter, operation string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[adapter+"/"+operation]++
	if err != nil {
		m.errors[adapter+"/"+operation]++
	}
}

func (m *recordingMetrics) RecordBytes(adapter, operation string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes[adapter+"/"+operation] += n
}

func TestInstrumentedAdapter(t *testing.T) {
	suite := &storagetest.AdapterTestSuite{
		NewAdapter: func(t *testing.T) storage.Adapter {
			return NewInstrumentedAdapter("memory", memory.New(), newRecordingMetrics())
		},
	}
	suite.Run(t)
}

func TestInstrumentedAdapterRecords(t *testing.T) {
	ctx := context.Background()
	metrics := newRecordingMetrics()
	fs := storage.New(NewInstrumentedAdapter("mem", memory.New(), metrics))

	require.NoError(t, fs.Write(ctx, "a.txt", []byte("hello"), storage.Config{}))
	require.NoError(t, fs.WriteStream(ctx, "b.txt", bytes.NewReader([]byte("streamed")), storage.Config{}))

	_, err := fs.Read(ctx, "a.txt")
	require.NoError(t, err)

	_, err = fs.Read(ctx, "missing.txt")
	require.Error(t, err)

	stream, err := fs.ReadStream(ctx, "b.txt")
	require.NoError(t, err)
	_, err = io.Copy(io.Discard, stream)
	require.NoError(t, err)

	metrics.mu.Lock()
	assert.Zero(t, metrics.bytes["mem/"+OpReadStream])
	metrics.mu.Unlock()

	require.NoError(t, stream.Close())

	_, err = fs.ListContents(ctx, "", true).ToSlice()
	require.NoError(t, err)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	assert.Equal(t, 1, metrics.operations["mem/"+OpWrite])
	assert.Equal(t, 1, metrics.operations["mem/"+OpWriteStream])
	assert.Equal(t, 2, metrics.operations["mem/"+OpRead])
	assert.Equal(t, 1, metrics.errors["mem/"+OpRead])
	assert.Equal(t, 1, metrics.operations["mem/"+OpListContents])

	assert.EqualValues(t, 5, metrics.bytes["mem/"+OpWrite])
	assert.EqualValues(t, 8, metrics.bytes["mem/"+OpWriteStream])
	assert.EqualValues(t, 5, metrics.bytes["mem/"+OpRead])
	assert.EqualValues(t, 8, metrics.bytes["mem/"+OpReadStream])
}

func TestInstrumentedAdapterNilMetrics(t *testing.T) {
	a := NewInstrumentedAdapter("mem", memory.New(), nil)
	require.NoError(t, a.Write(context.Background(), "a.txt", []byte("x"), storage.Config{}))
	assert.NotNil(t, a.Unwrap())
}
