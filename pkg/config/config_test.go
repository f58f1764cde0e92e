package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/strata/pkg/storage"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestLoad_MountsConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "debug"

defaults:
  visibility: private
  checksum_algo: SHA256

mounts:
  - name: scratch
    type: memory
  - name: docs
    type: local
    prefix: documents
    read_only: true
    rate_limit:
      ops_per_second: 25.5
      burst: 50
    options:
      root: /srv/strata
      links: skip
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Defaults.ChecksumAlgo != "sha256" {
		t.Errorf("Expected normalized checksum algo 'sha256', got %q", cfg.Defaults.ChecksumAlgo)
	}
	if !cfg.Defaults.RetainVisibility {
		t.Error("Expected retain_visibility to default to true")
	}
	if len(cfg.Mounts) != 2 {
		t.Fatalf("Expected 2 mounts, got %d", len(cfg.Mounts))
	}

	docs := cfg.Mounts[1]
	if docs.Name != "docs" || docs.Type != "local" || docs.Prefix != "documents" || !docs.ReadOnly {
		t.Errorf("Unexpected docs mount: %+v", docs)
	}
	if docs.RateLimit.OpsPerSecond != 25.5 || docs.RateLimit.Burst != 50 {
		t.Errorf("Unexpected rate limit: %+v", docs.RateLimit)
	}
	if docs.Options["root"] != "/srv/strata" {
		t.Errorf("Expected root option '/srv/strata', got %v", docs.Options["root"])
	}
	if cfg.Mounts[0].Options == nil {
		t.Error("Expected options map to be initialized")
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A non-existent explicit path keeps the user's own config out of the test
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if len(cfg.Mounts) != 1 || cfg.Mounts[0].Type != "memory" {
		t.Errorf("Expected a single default memory mount, got %+v", cfg.Mounts)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidMountType(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
mounts:
  - name: broken
    type: ftp
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown mount type")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[defaults]
retain_visibility = false

[[mounts]]
name = "db"
type = "badger"

[mounts.options]
in_memory = true
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Defaults.RetainVisibility {
		t.Error("Expected retain_visibility false from file")
	}
	if cfg.Mounts[0].Type != "badger" {
		t.Errorf("Expected badger mount, got %q", cfg.Mounts[0].Type)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("STRATA_LOGGING_LEVEL", "ERROR")
	t.Setenv("STRATA_DEFAULTS_CHECKSUM_ALGO", "xxhash")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"
mounts:
  - name: scratch
    type: memory
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Environment variables override the config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Defaults.ChecksumAlgo != "xxhash" {
		t.Errorf("Expected checksum algo 'xxhash' from env var, got %q", cfg.Defaults.ChecksumAlgo)
	}
}

func TestDefaultsStorageConfig(t *testing.T) {
	defaults := DefaultsConfig{
		Visibility:       "private",
		RetainVisibility: true,
		ChecksumAlgo:     "sha1",
	}

	cfg := defaults.StorageConfig()

	if got := cfg.GetString(storage.OptionVisibility, ""); got != "private" {
		t.Errorf("Expected visibility 'private', got %q", got)
	}
	if _, ok := cfg.Get(storage.OptionDirectoryVisibility); ok {
		t.Error("Expected no directory visibility when unset")
	}
	if !cfg.GetBool(storage.OptionRetainVisibility, false) {
		t.Error("Expected retain_visibility true")
	}
	if got := cfg.GetString(storage.OptionChecksumAlgo, ""); got != "sha1" {
		t.Errorf("Expected checksum algo 'sha1', got %q", got)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := GetDefaultConfigPath()
	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
	if filepath.Base(GetConfigDir()) != "strata" {
		t.Errorf("Expected directory name 'strata', got %q", filepath.Base(GetConfigDir()))
	}
	if ConfigExists() {
		t.Error("Expected no config in a fresh XDG_CONFIG_HOME")
	}
}
