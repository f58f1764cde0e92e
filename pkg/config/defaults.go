package config

import (
	"path/filepath"
	"strings"

	"github.com/marmos91/strata/pkg/storage"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values ("", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Adapter-specific defaults are handled by the adapter factories
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyDefaultsDefaults(&cfg.Defaults)

	// Add a default in-memory mount if none configured
	if len(cfg.Mounts) == 0 {
		cfg.Mounts = []MountConfig{{Name: "memory", Type: "memory"}}
	}

	applyMountDefaults(cfg.Mounts)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyDefaultsDefaults sets the default write options.
func applyDefaultsDefaults(cfg *DefaultsConfig) {
	if cfg.ChecksumAlgo == "" {
		cfg.ChecksumAlgo = storage.DefaultChecksumAlgo
	}
	cfg.ChecksumAlgo = strings.ToLower(cfg.ChecksumAlgo)

	// Visibility and DirectoryVisibility stay empty: each adapter then
	// applies its own default.
}

// applyMountDefaults sets mount defaults.
func applyMountDefaults(mounts []MountConfig) {
	for i := range mounts {
		mount := &mounts[i]

		mount.Type = strings.ToLower(mount.Type)

		// ReadOnly defaults to false

		if mount.Options == nil {
			mount.Options = make(map[string]any)
		}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Defaults: DefaultsConfig{
			RetainVisibility: true,
		},
		Mounts: []MountConfig{
			{
				Name: "local",
				Type: "local",
				Options: map[string]any{
					"root": filepath.Join(getDataDir(), "local"),
				},
			},
			{
				Name: "memory",
				Type: "memory",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

// getDataDir returns the directory used by default for local data.
func getDataDir() string {
	return filepath.Join(getConfigDir(), "data")
}
