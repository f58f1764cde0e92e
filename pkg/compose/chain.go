package compose

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/storage"
)

// ChainWriter broadcasts every mutation to a list of writers.
//
// Writers are called in registration order and the first failure is
// returned immediately; writers after the failing one are not called, and
// writers before it keep their changes.
//
// A stream can only be read once, so WriteStream spools it to a temporary
// file and replays that file for each writer. The spool is removed on every
// exit path.
type ChainWriter struct {
	writers []storage.Writer

	// SpoolDir is where WriteStream buffers streams. Empty means
	// os.TempDir().
	SpoolDir string
}

var _ storage.Writer = (*ChainWriter)(nil)

// NewChainWriter creates a chain over writers, in order.
func NewChainWriter(writers ...storage.Writer) *ChainWriter {
	return &ChainWriter{writers: writers}
}

// Add appends a writer to the chain.
func (c *ChainWriter) Add(w storage.Writer) {
	c.writers = append(c.writers, w)
}

// Len returns the number of writers in the chain.
func (c *ChainWriter) Len() int {
	return len(c.writers)
}

// broadcast runs op against every writer and stops at the first error.
func (c *ChainWriter) broadcast(op func(storage.Writer) error) error {
	for _, w := range c.writers {
		if err := op(w); err != nil {
			return err
		}
	}
	return nil
}

// Write implements storage.Writer.
func (c *ChainWriter) Write(ctx context.Context, path string, contents []byte, config storage.Config) error {
	return c.broadcast(func(w storage.Writer) error {
		return w.Write(ctx, path, contents, config)
	})
}

// WriteStream implements storage.Writer.
func (c *ChainWriter) WriteStream(ctx context.Context, path string, r io.Reader, config storage.Config) error {
	switch len(c.writers) {
	case 0:
		return nil
	case 1:
		return c.writers[0].WriteStream(ctx, path, r, config)
	}

	spool, cleanup, err := c.spool(r)
	if err != nil {
		return storage.UnableToWriteFile(path, "", err)
	}
	defer cleanup()

	return c.broadcast(func(w storage.Writer) error {
		if _, err := spool.Seek(0, io.SeekStart); err != nil {
			return storage.UnableToWriteFile(path, "", err)
		}
		return w.WriteStream(ctx, path, spool, config)
	})
}

// spool copies r into a new temporary file. cleanup closes and removes it.
func (c *ChainWriter) spool(r io.Reader) (*os.File, func(), error) {
	dir := c.SpoolDir
	if dir == "" {
		dir = os.TempDir()
	}

	name := filepath.Join(dir, "strata-chain-"+uuid.NewString()+".spool")
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("create spool file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			logger.Warn("chain writer: failed to remove spool %s: %v", name, err)
		}
	}

	n, err := io.Copy(f, r)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("spool stream: %w", err)
	}

	logger.Debug("chain writer: spooled %d bytes to %s for %d writers", n, name, len(c.writers))
	return f, cleanup, nil
}

// SetVisibility implements storage.Writer.
func (c *ChainWriter) SetVisibility(ctx context.Context, path string, visibility storage.Visibility) error {
	return c.broadcast(func(w storage.Writer) error {
		return w.SetVisibility(ctx, path, visibility)
	})
}

// Delete implements storage.Writer.
func (c *ChainWriter) Delete(ctx context.Context, path string) error {
	return c.broadcast(func(w storage.Writer) error {
		return w.Delete(ctx, path)
	})
}

// DeleteDirectory implements storage.Writer.
func (c *ChainWriter) DeleteDirectory(ctx context.Context, path string) error {
	return c.broadcast(func(w storage.Writer) error {
		return w.DeleteDirectory(ctx, path)
	})
}

// CreateDirectory implements storage.Writer.
func (c *ChainWriter) CreateDirectory(ctx context.Context, path string, config storage.Config) error {
	return c.broadcast(func(w storage.Writer) error {
		return w.CreateDirectory(ctx, path, config)
	})
}

// Move implements storage.Writer.
func (c *ChainWriter) Move(ctx context.Context, source, destination string, config storage.Config) error {
	return c.broadcast(func(w storage.Writer) error {
		return w.Move(ctx, source, destination, config)
	})
}

// Copy implements storage.Writer.
func (c *ChainWriter) Copy(ctx context.Context, source, destination string, config storage.Config) error {
	return c.broadcast(func(w storage.Writer) error {
		return w.Copy(ctx, source, destination, config)
	})
}
