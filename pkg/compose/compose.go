// Package compose provides decorators that combine or reshape filesystems:
// path prefixing, read-only protection, write broadcasting, routing between
// named backends and instrumentation.
//
// Operator decorators (PrefixedFilesystem, ChainWriter, MountManager) wrap
// storage.Operator values; adapter decorators (PathPrefixedAdapter,
// ReadOnlyAdapter, ArrayAdapter, InstrumentedAdapter) wrap storage.Adapter
// values and are placed below a storage.Filesystem.
//
// Every decorator reports failures in the storage error taxonomy, with the
// paths its own caller used.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/marmos91/strata/pkg/storage"
)

var (
	// ErrEmptyPrefix is returned when a prefix decorator is built with an
	// empty (or root-only) prefix.
	ErrEmptyPrefix = errors.New("prefix must not be empty")

	// ErrReadOnly is the cause attached to every mutation refused by a
	// ReadOnlyAdapter.
	ErrReadOnly = errors.New("filesystem is read-only")
)

// validateMountName checks a mount or namespace name. Names are used
// verbatim in routed paths, so they cannot contain separators.
func validateMountName(name string) error {
	if name == "" {
		return storage.UnableToMountFilesystem("mount name must not be empty")
	}
	if strings.ContainsAny(name, `/\:@`) {
		return storage.UnableToMountFilesystem(fmt.Sprintf("mount name %q contains a reserved character", name))
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return storage.UnableToMountFilesystem(fmt.Sprintf("mount name %q contains control characters", name))
		}
	}
	return nil
}

// closeAll closes every value implementing storage.Closer and joins the
// errors.
func closeAll[T any](items []T) error {
	var errs []error
	for _, item := range items {
		if closer, ok := any(item).(storage.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// streamBetween copies a file between two adapters and applies the resolved
// destination visibility. It is the adapter-level counterpart of
// storage.CopyBetween.
func streamBetween(ctx context.Context, src storage.Adapter, source string, dst storage.Adapter, destination string, config storage.Config) error {
	stream, err := src.ReadStream(ctx, source)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	visibility, _ := storage.ResolveTransferVisibility(config, func() (storage.Visibility, error) {
		attrs, err := src.Visibility(ctx, source)
		if err != nil {
			return "", err
		}
		return attrs.Visibility(), nil
	})

	cfg := config.Without(storage.OptionRetainVisibility)
	if visibility != "" {
		cfg = cfg.WithSetting(storage.OptionVisibility, string(visibility))
	}
	return dst.WriteStream(ctx, destination, stream, cfg)
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
