// Package visibility maps the portable public/private visibility onto POSIX
// permission bits.
package visibility

import (
	"os"

	"github.com/marmos91/strata/pkg/storage"
)

// Default permission bits.
const (
	DefaultFilePublic       os.FileMode = 0644
	DefaultFilePrivate      os.FileMode = 0600
	DefaultDirectoryPublic  os.FileMode = 0755
	DefaultDirectoryPrivate os.FileMode = 0700
)

// Converter translates visibility to permission bits and back.
type Converter interface {
	ForFile(v storage.Visibility) os.FileMode
	ForDirectory(v storage.Visibility) os.FileMode
	InverseForFile(mode os.FileMode) storage.Visibility
	InverseForDirectory(mode os.FileMode) storage.Visibility
	DefaultForDirectories() os.FileMode
}

// UnixConverter is the permission-bit Converter used by disk-backed adapters.
type UnixConverter struct {
	FilePublic       os.FileMode
	FilePrivate      os.FileMode
	DirectoryPublic  os.FileMode
	DirectoryPrivate os.FileMode

	// DirectoryDefault is the visibility of directories created without an
	// explicit directory_visibility option.
	DirectoryDefault storage.Visibility
}

// NewUnixConverter returns a converter with the default bits. Directories
// are private unless configured otherwise.
func NewUnixConverter() *UnixConverter {
	return &UnixConverter{
		FilePublic:       DefaultFilePublic,
		FilePrivate:      DefaultFilePrivate,
		DirectoryPublic:  DefaultDirectoryPublic,
		DirectoryPrivate: DefaultDirectoryPrivate,
		DirectoryDefault: storage.VisibilityPrivate,
	}
}

// ForFile returns the file mode for v. Anything but public maps to private.
func (c *UnixConverter) ForFile(v storage.Visibility) os.FileMode {
	if v == storage.VisibilityPublic {
		return c.FilePublic
	}
	return c.FilePrivate
}

// ForDirectory returns the directory mode for v.
func (c *UnixConverter) ForDirectory(v storage.Visibility) os.FileMode {
	if v == storage.VisibilityPublic {
		return c.DirectoryPublic
	}
	return c.DirectoryPrivate
}

// InverseForFile maps file permission bits back to a visibility. Modes that
// match neither configured value report VisibilityUnknown.
func (c *UnixConverter) InverseForFile(mode os.FileMode) storage.Visibility {
	switch mode.Perm() {
	case c.FilePublic:
		return storage.VisibilityPublic
	case c.FilePrivate:
		return storage.VisibilityPrivate
	default:
		return storage.VisibilityUnknown
	}
}

// InverseForDirectory maps directory permission bits back to a visibility.
func (c *UnixConverter) InverseForDirectory(mode os.FileMode) storage.Visibility {
	switch mode.Perm() {
	case c.DirectoryPublic:
		return storage.VisibilityPublic
	case c.DirectoryPrivate:
		return storage.VisibilityPrivate
	default:
		return storage.VisibilityUnknown
	}
}

// DefaultForDirectories returns the mode for implicitly created directories.
func (c *UnixConverter) DefaultForDirectories() os.FileMode {
	return c.ForDirectory(c.DirectoryDefault)
}
