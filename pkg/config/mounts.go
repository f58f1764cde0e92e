package config

import (
	"context"
	"fmt"

	"github.com/marmos91/strata/internal/logger"
	"github.com/marmos91/strata/pkg/compose"
	"github.com/marmos91/strata/pkg/storage"
)

// InitializeMounts creates a fully configured MountManager from the provided
// configuration.
//
// For every entry of cfg.Mounts the adapter is created by CreateAdapter and
// then decorated, innermost first:
//  1. PathPrefixedAdapter when a prefix is configured
//  2. ReadOnlyAdapter when read_only is set
//  3. InstrumentedAdapter reporting to m (nil disables collection)
//  4. ThrottledAdapter when rate_limit.ops_per_second is set
//
// and mounted as a storage.Filesystem using the configured defaults.
// On failure every adapter created so far is closed.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	mm, err := config.InitializeMounts(ctx, cfg, config.InitializeMetrics(cfg))
//	if err != nil {
//	    log.Fatalf("Failed to initialize mounts: %v", err)
//	}
//	defer mm.Close()
func InitializeMounts(ctx context.Context, cfg *Config, m compose.Metrics) (*compose.MountManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if len(cfg.Mounts) == 0 {
		return nil, fmt.Errorf("no mounts configured")
	}

	logger.Debug("Initializing %d mount(s) from configuration", len(cfg.Mounts))

	mm := compose.NewMountManager()
	defaults := cfg.Defaults.StorageConfig()

	for i, mountCfg := range cfg.Mounts {
		fs, err := createMount(ctx, mountCfg, defaults, m)
		if err != nil {
			_ = mm.Close()
			return nil, fmt.Errorf("mounts[%d] (%s): %w", i, mountCfg.Name, err)
		}

		if err := mm.Mount(mountCfg.Name, fs); err != nil {
			_ = fs.Close()
			_ = mm.Close()
			return nil, fmt.Errorf("mounts[%d] (%s): %w", i, mountCfg.Name, err)
		}

		logger.Debug("Mounted %s://: type=%s prefix=%q read_only=%v rate_limit=%g",
			mountCfg.Name, mountCfg.Type, mountCfg.Prefix, mountCfg.ReadOnly, mountCfg.RateLimit.OpsPerSecond)
	}

	return mm, nil
}

// createMount builds the decorated filesystem of a single mount.
func createMount(ctx context.Context, cfg MountConfig, defaults storage.Config, m compose.Metrics) (*storage.Filesystem, error) {
	adapter, err := CreateAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Prefix != "" {
		prefixed, err := compose.NewPathPrefixedAdapter(adapter, cfg.Prefix)
		if err != nil {
			if closer, ok := adapter.(storage.Closer); ok {
				_ = closer.Close()
			}
			return nil, fmt.Errorf("invalid prefix %q: %w", cfg.Prefix, err)
		}
		adapter = prefixed
	}

	if cfg.ReadOnly {
		adapter = compose.NewReadOnlyAdapter(adapter)
	}

	adapter = compose.NewInstrumentedAdapter(cfg.Name, adapter, m)

	if cfg.RateLimit.OpsPerSecond > 0 {
		adapter = compose.NewThrottledAdapter(adapter, cfg.RateLimit.OpsPerSecond, cfg.RateLimit.Burst)
	}

	return storage.New(adapter, storage.WithConfig(defaults)), nil
}
