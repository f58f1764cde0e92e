package storagetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/strata/pkg/storage"
)

// RunMetadataTests executes attribute retrieval and visibility tests.
func (suite *AdapterTestSuite) RunMetadataTests(t *testing.T) {
	t.Run("FileSize", suite.testFileSize)
	t.Run("LastModified", suite.testLastModified)
	t.Run("MimeType", suite.testMimeType)
	t.Run("MimeType_Unknown", suite.testMimeTypeUnknown)
	t.Run("Visibility_OnWrite", suite.testVisibilityOnWrite)
	t.Run("Visibility_Set", suite.testSetVisibility)
	t.Run("Metadata_MissingFile", suite.testMetadataMissingFile)
}

func (suite *AdapterTestSuite) testFileSize(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "path.txt", []byte("contents"), storage.Config{})

	size, err := fs.FileSize(testContext(), "path.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
}

func (suite *AdapterTestSuite) testLastModified(t *testing.T) {
	fs, _ := suite.newFilesystem(t)
	before := time.Now().Add(-time.Minute).Unix()
	mustWrite(t, fs, "path.txt", []byte("contents"), storage.Config{})

	ts, err := fs.LastModified(testContext(), "path.txt")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts, before)
	assert.LessOrEqual(t, ts, time.Now().Add(time.Minute).Unix())
}

func (suite *AdapterTestSuite) testMimeType(t *testing.T) {
	if suite.SkipMimeType {
		t.Skip("Adapter does not support mime types")
	}
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "file.txt", []byte("contents"), storage.Config{})

	mimeType, err := fs.MimeType(testContext(), "file.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mimeType)
}

func (suite *AdapterTestSuite) testMimeTypeUnknown(t *testing.T) {
	if suite.SkipMimeType {
		t.Skip("Adapter does not support mime types")
	}
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "unknown-mime-type.md5", []byte(""), storage.Config{})

	_, err := fs.MimeType(testContext(), "unknown-mime-type.md5")
	AssertErrorIs(t, storage.ErrUnableToRetrieveMetadata, err)
}

func (suite *AdapterTestSuite) testVisibilityOnWrite(t *testing.T) {
	if suite.SkipVisibility {
		t.Skip("Adapter does not support visibility")
	}
	fs, _ := suite.newFilesystem(t)

	mustWrite(t, fs, "public.txt", []byte("contents"), withVisibility(storage.VisibilityPublic))
	mustWrite(t, fs, "private.txt", []byte("contents"), withVisibility(storage.VisibilityPrivate))

	assertVisibility(t, fs, "public.txt", storage.VisibilityPublic)
	assertVisibility(t, fs, "private.txt", storage.VisibilityPrivate)
}

func (suite *AdapterTestSuite) testSetVisibility(t *testing.T) {
	if suite.SkipVisibility {
		t.Skip("Adapter does not support visibility")
	}
	fs, _ := suite.newFilesystem(t)
	mustWrite(t, fs, "path.txt", []byte("contents"), withVisibility(storage.VisibilityPublic))

	require.NoError(t, fs.SetVisibility(testContext(), "path.txt", storage.VisibilityPrivate))
	assertVisibility(t, fs, "path.txt", storage.VisibilityPrivate)

	require.NoError(t, fs.SetVisibility(testContext(), "path.txt", storage.VisibilityPublic))
	assertVisibility(t, fs, "path.txt", storage.VisibilityPublic)
}

func (suite *AdapterTestSuite) testMetadataMissingFile(t *testing.T) {
	fs, _ := suite.newFilesystem(t)

	_, err := fs.FileSize(testContext(), "missing.txt")
	AssertErrorIs(t, storage.ErrUnableToRetrieveMetadata, err)

	_, err = fs.LastModified(testContext(), "missing.txt")
	AssertErrorIs(t, storage.ErrUnableToRetrieveMetadata, err)

	_, err = fs.MimeType(testContext(), "missing.txt")
	AssertErrorIs(t, storage.ErrUnableToRetrieveMetadata, err)

	if !suite.SkipVisibility {
		_, err = fs.Visibility(testContext(), "missing.txt")
		AssertErrorIs(t, storage.ErrUnableToRetrieveMetadata, err)
	}
}
