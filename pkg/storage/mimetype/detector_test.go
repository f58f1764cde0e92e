package mimetype

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestDetect(t *testing.T) {
	d := NewDetector()

	t.Run("SniffsContents", func(t *testing.T) {
		assert.Equal(t, "image/png", d.Detect("no-extension", pngHeader))
	})

	t.Run("ContentsWinOverExtension", func(t *testing.T) {
		assert.Equal(t, "image/png", d.Detect("image.txt", pngHeader))
	})

	t.Run("InconclusiveFallsBackToExtension", func(t *testing.T) {
		assert.Equal(t, "text/plain", d.Detect("file.txt", []byte("contents")))
		assert.Equal(t, "text/css", d.Detect("style.css", []byte("body {}")))
	})

	t.Run("UnknownIsEmpty", func(t *testing.T) {
		assert.Equal(t, "", d.Detect("unknown", []byte("contents")))
	})

	t.Run("InconclusiveFallback", func(t *testing.T) {
		fallback := &Detector{InconclusiveFallback: true}
		assert.Equal(t, "text/plain", fallback.Detect("unknown", []byte("contents")))
	})
}

func TestDetectFromPath(t *testing.T) {
	d := NewDetector()
	assert.Equal(t, "application/json", d.DetectFromPath("a/b/data.JSON"))
	assert.Equal(t, "", d.DetectFromPath("README"))
}

func TestDetectReaderAndFile(t *testing.T) {
	d := NewDetector()

	got, err := d.DetectReader("x", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", got)

	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# title"), 0600))
	got, err = d.DetectFile(path)
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", got)
}

func TestStripParameters(t *testing.T) {
	assert.Equal(t, "text/plain", stripParameters("text/plain; charset=utf-8"))
	assert.Equal(t, "", stripParameters(""))
}
