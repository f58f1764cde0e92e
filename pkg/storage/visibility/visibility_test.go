package visibility

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/strata/pkg/storage"
)

func TestUnixConverter(t *testing.T) {
	c := NewUnixConverter()

	assert.Equal(t, os.FileMode(0644), c.ForFile(storage.VisibilityPublic))
	assert.Equal(t, os.FileMode(0600), c.ForFile(storage.VisibilityPrivate))
	assert.Equal(t, os.FileMode(0755), c.ForDirectory(storage.VisibilityPublic))
	assert.Equal(t, os.FileMode(0700), c.ForDirectory(storage.VisibilityPrivate))
	assert.Equal(t, os.FileMode(0700), c.DefaultForDirectories())

	assert.Equal(t, storage.VisibilityPublic, c.InverseForFile(0644))
	assert.Equal(t, storage.VisibilityPrivate, c.InverseForFile(0600))
	assert.Equal(t, storage.VisibilityUnknown, c.InverseForFile(0666))
	assert.Equal(t, storage.VisibilityPublic, c.InverseForDirectory(os.ModeDir|0755))
	assert.Equal(t, storage.VisibilityUnknown, c.InverseForDirectory(0777))
}

func TestUnixConverterCustomBits(t *testing.T) {
	c := NewUnixConverter()
	c.FilePublic = 0664
	c.DirectoryDefault = storage.VisibilityPublic

	assert.Equal(t, os.FileMode(0664), c.ForFile(storage.VisibilityPublic))
	assert.Equal(t, storage.VisibilityPublic, c.InverseForFile(0664))
	assert.Equal(t, os.FileMode(0755), c.DefaultForDirectories())
}
