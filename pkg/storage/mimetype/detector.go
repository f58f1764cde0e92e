// Package mimetype detects the mime type of stored files from their contents,
// falling back to the file extension when content sniffing is inconclusive.
package mimetype

import (
	"io"
	"mime"
	"path"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// inconclusive lists sniffed types that say nothing specific about a file.
var inconclusive = []string{
	"application/octet-stream",
	"application/x-empty",
	"inode/x-empty",
	"text/plain",
	"text/x-asm",
}

var extensions = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".wasm": "application/wasm",
}

// Detector resolves mime types. The zero value is ready to use.
type Detector struct {
	// InconclusiveFallback returns the sniffed type even when it is
	// inconclusive and the extension is unknown. When false such files have
	// no mime type.
	InconclusiveFallback bool
}

// NewDetector returns a Detector with default settings.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect sniffs contents and falls back to the extension of name. It returns
// "" when the type cannot be determined.
func (d *Detector) Detect(name string, contents []byte) string {
	return d.resolve(name, mimetype.Detect(contents).String())
}

// DetectReader sniffs the head of r (see mimetype.DetectReader).
func (d *Detector) DetectReader(name string, r io.Reader) (string, error) {
	m, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	return d.resolve(name, m.String()), nil
}

// DetectFile sniffs a file on the local disk.
func (d *Detector) DetectFile(name string) (string, error) {
	m, err := mimetype.DetectFile(name)
	if err != nil {
		return "", err
	}
	return d.resolve(name, m.String()), nil
}

// DetectFromPath uses only the extension of name.
func (d *Detector) DetectFromPath(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if t, ok := extensions[ext]; ok {
		return t
	}
	return stripParameters(mime.TypeByExtension(ext))
}

func (d *Detector) resolve(name, sniffed string) string {
	sniffed = stripParameters(sniffed)
	if sniffed != "" && !slices.Contains(inconclusive, sniffed) {
		return sniffed
	}
	if byExt := d.DetectFromPath(name); byExt != "" {
		return byExt
	}
	if d.InconclusiveFallback {
		return sniffed
	}
	return ""
}

func stripParameters(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.TrimSpace(base)
}
