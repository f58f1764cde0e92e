package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/marmos91/strata/pkg/storage"
)

// Config represents the complete strata configuration.
//
// This structure captures all configurable aspects of strata including:
//   - Logging configuration
//   - Metrics collection
//   - Default write options applied to every mount
//   - Mount definitions (one backend per mount name)
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (STRATA_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Mount Configuration Pattern:
// Each adapter defines its own configuration type. A mount carries its
// adapter type and a free-form options map that is decoded into that type
// by the matching factory.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Defaults are the write options every mounted filesystem starts from
	Defaults DefaultsConfig `mapstructure:"defaults" yaml:"defaults"`

	// Mounts defines the filesystems reachable as "name://path"
	Mounts []MountConfig `mapstructure:"mounts" yaml:"mounts" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	// Enabled turns on adapter instrumentation
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Textfile is where the CLI writes the collected metrics on exit, in
	// the node_exporter textfile format. Empty disables the export.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// DefaultsConfig holds the default write options of every mount.
type DefaultsConfig struct {
	// Visibility of written files: public or private
	Visibility string `mapstructure:"visibility" yaml:"visibility" validate:"omitempty,oneof=public private"`

	// DirectoryVisibility of created directories: public or private
	DirectoryVisibility string `mapstructure:"directory_visibility" yaml:"directory_visibility" validate:"omitempty,oneof=public private"`

	// RetainVisibility makes copy and move keep the source visibility
	RetainVisibility bool `mapstructure:"retain_visibility" yaml:"retain_visibility"`

	// ChecksumAlgo is the default checksum algorithm
	ChecksumAlgo string `mapstructure:"checksum_algo" yaml:"checksum_algo" validate:"required"`
}

// StorageConfig converts the defaults into a storage.Config.
func (d DefaultsConfig) StorageConfig() storage.Config {
	options := map[string]any{
		storage.OptionRetainVisibility: d.RetainVisibility,
		storage.OptionChecksumAlgo:     d.ChecksumAlgo,
	}
	if d.Visibility != "" {
		options[storage.OptionVisibility] = d.Visibility
	}
	if d.DirectoryVisibility != "" {
		options[storage.OptionDirectoryVisibility] = d.DirectoryVisibility
	}
	return storage.NewConfig(options)
}

// MountConfig defines a single mounted filesystem.
type MountConfig struct {
	// Name is the mount name used in "name://path" paths
	Name string `mapstructure:"name" yaml:"name" validate:"required,excludesall=/\\:@"`

	// Type selects the adapter implementation
	// Valid values: memory, local, billyfs, badger, s3, gridfs
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory local billyfs badger s3 gridfs"`

	// Prefix scopes the mount to a subdirectory of the backend
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`

	// ReadOnly refuses every mutation on the mount
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// RateLimit bounds the rate of calls to the backend
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit,omitempty"`

	// Options is the adapter-specific configuration, decoded by the
	// adapter factory
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// RateLimitConfig configures per-mount throttling.
type RateLimitConfig struct {
	// OpsPerSecond is the sustained rate of backend calls
	// 0 disables throttling
	OpsPerSecond float64 `mapstructure:"ops_per_second" yaml:"ops_per_second,omitempty" validate:"gte=0"`

	// Burst is the number of calls served at once when the bucket is full
	// Default: the rate, rounded up
	Burst int `mapstructure:"burst" yaml:"burst,omitempty" validate:"gte=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (STRATA_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use STRATA_ prefix and underscores
	// Example: STRATA_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Retaining visibility is on unless explicitly disabled
	v.SetDefault("defaults.retain_visibility", true)

	// AutomaticEnv only applies to keys viper already knows about
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"metrics.enabled", "metrics.textfile",
		"defaults.visibility", "defaults.directory_visibility",
		"defaults.checksum_algo",
	} {
		_ = v.BindEnv(key)
	}

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/strata/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicitly configured file that does not exist
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "strata")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "strata")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
