package compose

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/adapter/memory"
	"github.com/marmos91/strata/pkg/storage"
)

// recordingWriter records the calls it receives and optionally fails them.
type recordingWriter struct {
	name  string
	calls *[]string
	fail  error
}

func (w *recordingWriter) record(call string) error {
	*w.calls = append(*w.calls, w.name+":"+call)
	return w.fail
}

func (w *recordingWriter) Write(_ context.Context, path string, _ []byte, _ storage.Config) error {
	return w.record("write " + path)
}

func (w *recordingWriter) WriteStream(_ context.Context, path string, r io.Reader, _ storage.Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return w.record("write_stream " + path + " " + string(data))
}

func (w *recordingWriter) SetVisibility(_ context.Context, path string, v storage.Visibility) error {
	return w.record("set_visibility " + path + " " + string(v))
}

func (w *recordingWriter) Delete(_ context.Context, path string) error {
	return w.record("delete " + path)
}

func (w *recordingWriter) DeleteDirectory(_ context.Context, path string) error {
	return w.record("delete_directory " + path)
}

func (w *recordingWriter) CreateDirectory(_ context.Context, path string, _ storage.Config) error {
	return w.record("create_directory " + path)
}

func (w *recordingWriter) Move(_ context.Context, source, destination string, _ storage.Config) error {
	return w.record("move " + source + " " + destination)
}

func (w *recordingWriter) Copy(_ context.Context, source, destination string, _ storage.Config) error {
	return w.record("copy " + source + " " + destination)
}

func TestChainWriterBroadcastsInOrder(t *testing.T) {
	ctx := context.Background()
	var calls []string
	chain := NewChainWriter(
		&recordingWriter{name: "a", calls: &calls},
		&recordingWriter{name: "b", calls: &calls},
	)
	chain.Add(&recordingWriter{name: "c", calls: &calls})
	assert.Equal(t, 3, chain.Len())

	require.NoError(t, chain.Write(ctx, "x.txt", []byte("x"), storage.Config{}))
	require.NoError(t, chain.Move(ctx, "x.txt", "y.txt", storage.Config{}))
	require.NoError(t, chain.SetVisibility(ctx, "y.txt", storage.VisibilityPrivate))

	assert.Equal(t, []string{
		"a:write x.txt", "b:write x.txt", "c:write x.txt",
		"a:move x.txt y.txt", "b:move x.txt y.txt", "c:move x.txt y.txt",
		"a:set_visibility y.txt private", "b:set_visibility y.txt private", "c:set_visibility y.txt private",
	}, calls)
}

func TestChainWriterStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	var calls []string
	boom := errors.New("boom")
	chain := NewChainWriter(
		&recordingWriter{name: "a", calls: &calls},
		&recordingWriter{name: "b", calls: &calls, fail: boom},
		&recordingWriter{name: "c", calls: &calls},
	)

	err := chain.Delete(ctx, "x.txt")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a:delete x.txt", "b:delete x.txt"}, calls)
}

func TestChainWriterEmpty(t *testing.T) {
	chain := NewChainWriter()
	assert.NoError(t, chain.Write(context.Background(), "x.txt", []byte("x"), storage.Config{}))
	assert.NoError(t, chain.WriteStream(context.Background(), "x.txt", bytes.NewReader(nil), storage.Config{}))
}

func TestChainWriterReplaysStreams(t *testing.T) {
	ctx := context.Background()
	spoolDir := t.TempDir()

	targets := []*storage.Filesystem{
		storage.New(memory.New()),
		storage.New(memory.New()),
		storage.New(memory.New()),
	}
	chain := NewChainWriter()
	for _, fs := range targets {
		chain.Add(fs)
	}
	chain.SpoolDir = spoolDir

	payload := bytes.Repeat([]byte("strata"), 10000)
	require.NoError(t, chain.WriteStream(ctx, "dir/blob.bin", bytes.NewReader(payload), storage.Config{}))

	for i, fs := range targets {
		got, err := fs.Read(ctx, "dir/blob.bin")
		require.NoError(t, err, "target %d", i)
		assert.Equal(t, payload, got, "target %d", i)
	}

	entries, err := os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChainWriterRemovesSpoolOnFailure(t *testing.T) {
	ctx := context.Background()
	spoolDir := t.TempDir()
	var calls []string

	chain := NewChainWriter(
		&recordingWriter{name: "a", calls: &calls, fail: errors.New("boom")},
		&recordingWriter{name: "b", calls: &calls},
	)
	chain.SpoolDir = spoolDir

	err := chain.WriteStream(ctx, "x.txt", bytes.NewReader([]byte("data")), storage.Config{})
	require.Error(t, err)
	assert.Equal(t, []string{"a:write_stream x.txt data"}, calls)

	entries, err := os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
