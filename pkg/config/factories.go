package config

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/adapter/badger"
	"github.com/marmos91/strata/pkg/adapter/billyfs"
	"github.com/marmos91/strata/pkg/adapter/gridfs"
	"github.com/marmos91/strata/pkg/adapter/local"
	"github.com/marmos91/strata/pkg/adapter/memory"
	"github.com/marmos91/strata/pkg/adapter/s3"
	"github.com/marmos91/strata/pkg/storage"
)

// CreateAdapter creates the adapter of a mount based on configuration.
//
// This factory function uses the Type field to determine which adapter
// implementation to create, then decodes the mount's options map into the
// adapter's configuration type and passes it to the adapter's constructor.
//
// Supported types:
//   - "memory": pkg/adapter/memory (volatile, for tests and scratch space)
//   - "local": pkg/adapter/local (directory on the local filesystem)
//   - "billyfs": pkg/adapter/billyfs (go-billy memfs or osfs)
//   - "badger": pkg/adapter/badger (embedded BadgerDB key-value store)
//   - "s3": pkg/adapter/s3 (Amazon S3 or compatible storage)
//   - "gridfs": pkg/adapter/gridfs (MongoDB GridFS bucket)
func CreateAdapter(ctx context.Context, cfg MountConfig) (storage.Adapter, error) {
	switch cfg.Type {
	case "memory":
		return createMemoryAdapter(cfg.Options)
	case "local":
		return createLocalAdapter(cfg.Options)
	case "billyfs":
		return createBillyAdapter(cfg.Options)
	case "badger":
		return createBadgerAdapter(cfg.Options)
	case "s3":
		return createS3Adapter(ctx, cfg.Options)
	case "gridfs":
		return createGridFSAdapter(ctx, cfg.Options)
	default:
		return nil, fmt.Errorf("unknown adapter type: %q", cfg.Type)
	}
}

// decodeOptions decodes a mount's options map into out. Unknown keys are
// rejected and scalar values are converted (environment variables arrive
// as strings).
func decodeOptions(mountType string, options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(options); err != nil {
		return fmt.Errorf("failed to decode %s options: %w", mountType, err)
	}
	return nil
}

// createMemoryAdapter creates an in-memory adapter.
func createMemoryAdapter(options map[string]any) (storage.Adapter, error) {
	type MemoryAdapterConfig struct {
		DefaultVisibility string `mapstructure:"default_visibility" validate:"omitempty,oneof=public private"`
	}

	var adapterCfg MemoryAdapterConfig
	if err := decodeOptions("memory", options, &adapterCfg); err != nil {
		return nil, err
	}
	if err := validateOptions("memory", &adapterCfg); err != nil {
		return nil, err
	}

	var opts []memory.Option
	if adapterCfg.DefaultVisibility != "" {
		opts = append(opts, memory.WithDefaultVisibility(storage.Visibility(adapterCfg.DefaultVisibility)))
	}
	return memory.New(opts...), nil
}

// createLocalAdapter creates a local filesystem adapter.
func createLocalAdapter(options map[string]any) (storage.Adapter, error) {
	type LocalAdapterConfig struct {
		Root  string `mapstructure:"root" validate:"required"`
		Links string `mapstructure:"links" validate:"omitempty,oneof=disallow skip"`
	}

	var adapterCfg LocalAdapterConfig
	if err := decodeOptions("local", options, &adapterCfg); err != nil {
		return nil, err
	}
	if err := validateOptions("local", &adapterCfg); err != nil {
		return nil, err
	}

	links := local.DisallowLinks
	if adapterCfg.Links == "skip" {
		links = local.SkipLinks
	}

	adapter, err := local.New(adapterCfg.Root, local.WithLinkHandling(links))
	if err != nil {
		return nil, fmt.Errorf("failed to create local adapter: %w", err)
	}
	return adapter, nil
}

// createBillyAdapter creates a go-billy backed adapter.
func createBillyAdapter(options map[string]any) (storage.Adapter, error) {
	type BillyAdapterConfig struct {
		Backend string `mapstructure:"backend" validate:"omitempty,oneof=memfs osfs"`
		Root    string `mapstructure:"root" validate:"required_if=Backend osfs"`
	}

	var adapterCfg BillyAdapterConfig
	if err := decodeOptions("billyfs", options, &adapterCfg); err != nil {
		return nil, err
	}
	if err := validateOptions("billyfs", &adapterCfg); err != nil {
		return nil, err
	}

	if adapterCfg.Backend == "osfs" {
		adapter, err := billyfs.NewOS(adapterCfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to create billyfs adapter: %w", err)
		}
		return adapter, nil
	}
	return billyfs.New(memfs.New()), nil
}

// createBadgerAdapter creates a BadgerDB adapter.
func createBadgerAdapter(options map[string]any) (storage.Adapter, error) {
	var adapterCfg badger.Config
	if err := decodeOptions("badger", options, &adapterCfg); err != nil {
		return nil, err
	}
	if err := validateOptions("badger", &adapterCfg); err != nil {
		return nil, err
	}

	if !adapterCfg.InMemory && adapterCfg.Path == "" {
		return nil, fmt.Errorf("badger adapter: path is required unless in_memory is set")
	}

	adapter, err := badger.New(adapterCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger adapter: %w", err)
	}
	return adapter, nil
}

// s3MountConfig combines the client and adapter settings of an S3 mount.
type s3MountConfig struct {
	s3.ClientConfig `mapstructure:",squash"`
	s3.Config       `mapstructure:",squash"`
}

// createS3Adapter creates an S3 adapter.
func createS3Adapter(ctx context.Context, options map[string]any) (storage.Adapter, error) {
	var adapterCfg s3MountConfig
	if err := decodeOptions("s3", options, &adapterCfg); err != nil {
		return nil, err
	}
	if err := validateOptions("s3", &adapterCfg); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 1: Build the S3 client
	// ========================================================================

	client, err := s3.NewClient(ctx, adapterCfg.ClientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	// ========================================================================
	// Step 2: Create the adapter (verifies the bucket)
	// ========================================================================

	adapterCfg.Config.Client = client
	adapter, err := s3.New(ctx, adapterCfg.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 adapter: %w", err)
	}

	logger.Debug("S3 adapter ready: bucket=%s prefix=%q", adapterCfg.Bucket, adapterCfg.KeyPrefix)
	return adapter, nil
}

// createGridFSAdapter creates a GridFS adapter.
func createGridFSAdapter(ctx context.Context, options map[string]any) (storage.Adapter, error) {
	var adapterCfg gridfs.Config
	if err := decodeOptions("gridfs", options, &adapterCfg); err != nil {
		return nil, err
	}
	if err := validateOptions("gridfs", &adapterCfg); err != nil {
		return nil, err
	}

	adapter, err := gridfs.New(ctx, adapterCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gridfs adapter: %w", err)
	}
	return adapter, nil
}
