package config

import (
	"testing"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default output 'stderr', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Defaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Defaults.ChecksumAlgo != "md5" {
		t.Errorf("Expected default checksum algo 'md5', got %q", cfg.Defaults.ChecksumAlgo)
	}
	if cfg.Defaults.Visibility != "" {
		t.Errorf("Expected visibility to stay unset, got %q", cfg.Defaults.Visibility)
	}
}

func TestApplyDefaults_Mounts(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if len(cfg.Mounts) != 1 {
		t.Fatalf("Expected 1 default mount, got %d", len(cfg.Mounts))
	}
	if cfg.Mounts[0].Name != "memory" || cfg.Mounts[0].Type != "memory" {
		t.Errorf("Unexpected default mount: %+v", cfg.Mounts[0])
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "json",
			Output: "/var/log/strata.log",
		},
		Defaults: DefaultsConfig{
			Visibility:   "private",
			ChecksumAlgo: "SHA512",
		},
		Mounts: []MountConfig{
			{Name: "a", Type: "LOCAL", Options: map[string]any{"root": "/data"}},
			{Name: "b", Type: "s3"},
		},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected normalized level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "/var/log/strata.log" {
		t.Errorf("Expected explicit output preserved, got %q", cfg.Logging.Output)
	}
	if cfg.Defaults.Visibility != "private" {
		t.Errorf("Expected explicit visibility preserved, got %q", cfg.Defaults.Visibility)
	}
	if cfg.Defaults.ChecksumAlgo != "sha512" {
		t.Errorf("Expected normalized checksum algo 'sha512', got %q", cfg.Defaults.ChecksumAlgo)
	}
	if len(cfg.Mounts) != 2 {
		t.Fatalf("Expected mounts preserved, got %d", len(cfg.Mounts))
	}
	if cfg.Mounts[0].Type != "local" {
		t.Errorf("Expected normalized type 'local', got %q", cfg.Mounts[0].Type)
	}
	if cfg.Mounts[0].Options["root"] != "/data" {
		t.Errorf("Expected options preserved, got %v", cfg.Mounts[0].Options)
	}
	if cfg.Mounts[1].Options == nil {
		t.Error("Expected nil options to be initialized")
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := GetDefaultConfig()

	if !cfg.Defaults.RetainVisibility {
		t.Error("Expected retain_visibility enabled in the default config")
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled in the default config")
	}

	types := make(map[string]bool)
	for _, mount := range cfg.Mounts {
		types[mount.Type] = true
	}
	if !types["local"] || !types["memory"] {
		t.Errorf("Expected local and memory mounts, got %+v", cfg.Mounts)
	}
}
