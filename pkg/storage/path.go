package storage

import (
	"strings"
	"unicode"
)

// PathNormalizer turns caller-supplied paths into the canonical form used by
// adapters: forward slashes, no leading or trailing separator, no "." or ".."
// segments.
type PathNormalizer interface {
	NormalizePath(path string) (string, error)
}

// DefaultPathNormalizer is the normalizer used by Filesystem unless another
// one is configured.
//
// It rejects any path containing a code point from Unicode category C and resolves
// ".." segments against the segments seen so far. A ".." that would climb
// above the root is an error; it is never clamped.
type DefaultPathNormalizer struct{}

// NormalizePath implements PathNormalizer.
func (DefaultPathNormalizer) NormalizePath(path string) (string, error) {
	path = strings.ReplaceAll(path, "\\", "/")

	if strings.IndexFunc(path, isOtherCategory) >= 0 {
		return "", CorruptedPathDetected(path)
	}

	parts := make([]string, 0, strings.Count(path, "/")+1)
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return "", PathTraversalDetected(path)
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, part)
		}
	}

	return strings.Join(parts, "/"), nil
}

// isOtherCategory reports whether r is a control, format (U+200B, U+FEFF),
// private use or surrogate code point.
func isOtherCategory(r rune) bool {
	return unicode.In(r, unicode.C)
}

// NormalizePath normalizes path with the DefaultPathNormalizer.
func NormalizePath(path string) (string, error) {
	return DefaultPathNormalizer{}.NormalizePath(path)
}

// ParentDirectory returns the parent of a normalized path, or "" for entries
// at the root.
func ParentDirectory(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// JoinPath joins normalized path segments, skipping empty ones.
func JoinPath(elems ...string) string {
	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		e = strings.Trim(e, "/")
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}

// IntermediateDirectories returns the directories strictly between dir and
// path, outermost first. For dir "a" and path "a/b/c/d.txt" it returns
// "a/b" and "a/b/c". Adapters without explicit directory records use it to
// synthesize listing entries.
func IntermediateDirectories(dir, path string) []string {
	rel := path
	if dir != "" {
		rel = strings.TrimPrefix(path, dir+"/")
	}

	segments := strings.Split(rel, "/")
	parents := make([]string, 0, len(segments)-1)
	current := dir
	for _, segment := range segments[:len(segments)-1] {
		current = JoinPath(current, segment)
		parents = append(parents, current)
	}
	return parents
}
