package storage

import "strings"

// PathPrefixer maps adapter-relative paths onto a backend root and back.
//
// The prefix is stored with its trailing separators trimmed and exactly one
// separator appended, so "root", "root/" and "root//" behave the same. An
// empty prefix is a pass-through, except that leading separators on the
// input are still removed. A prefix consisting only of the separator keeps
// the separator as the prefix (useful for absolute local roots such as "/").
//
// The round-trip law holds for every normalized path p:
//
//	prefixer.StripPrefix(prefixer.PrefixPath(p)) == p
type PathPrefixer struct {
	prefix    string
	separator string
}

// NewPathPrefixer creates a prefixer for prefix using separator ("/" when
// empty).
func NewPathPrefixer(prefix, separator string) *PathPrefixer {
	if separator == "" {
		separator = "/"
	}

	trimmed := strings.TrimRight(prefix, "\\/")
	if trimmed != "" || prefix == separator {
		trimmed += separator
	}

	return &PathPrefixer{prefix: trimmed, separator: separator}
}

// Prefix returns the normalized prefix, including its trailing separator.
func (p *PathPrefixer) Prefix() string {
	return p.prefix
}

// PrefixPath joins the prefix and a relative path.
func (p *PathPrefixer) PrefixPath(path string) string {
	return p.prefix + strings.TrimLeft(path, "\\/")
}

// StripPrefix removes the prefix from an absolute path. Paths that do not
// carry the prefix are returned unchanged.
func (p *PathPrefixer) StripPrefix(path string) string {
	return strings.TrimPrefix(path, p.prefix)
}

// StripDirectoryPrefix removes the prefix and any trailing separator.
func (p *PathPrefixer) StripDirectoryPrefix(path string) string {
	return strings.TrimRight(p.StripPrefix(path), "\\/")
}

// PrefixDirectoryPath prefixes a directory path and guarantees a trailing
// separator, unless the result is empty.
func (p *PathPrefixer) PrefixDirectoryPath(path string) string {
	prefixed := p.PrefixPath(strings.TrimRight(path, "\\/"))
	if prefixed == "" || strings.HasSuffix(prefixed, p.separator) {
		return prefixed
	}
	return prefixed + p.separator
}
