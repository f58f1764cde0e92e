package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunInitThenCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	if code := run([]string{"-config", configPath, "init"}); code != 0 {
		t.Fatalf("init exit code = %d, want 0", code)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	if code := run([]string{"-config", configPath, "init"}); code != 1 {
		t.Errorf("second init exit code = %d, want 1", code)
	}
	if code := run([]string{"-config", configPath, "init", "-force"}); code != 0 {
		t.Errorf("forced init exit code = %d, want 0", code)
	}
}

func TestRunCommandWithMetricsFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: ERROR
mounts:
  - name: mem
    type: memory
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	metricsPath := filepath.Join(dir, "strata.prom")
	if code := run([]string{"-config", configPath, "-metrics-file", metricsPath, "ls", "mem://"}); code != 0 {
		t.Fatalf("ls exit code = %d, want 0", code)
	}
	if _, err := os.Stat(metricsPath); err != nil {
		t.Errorf("metrics file not written: %v", err)
	}

	if code := run([]string{"-config", configPath, "cat", "mem://missing.txt"}); code != 1 {
		t.Errorf("cat of a missing file exit code = %d, want 1", code)
	}
}

func TestRunUsageErrors(t *testing.T) {
	if code := run(nil); code != 2 {
		t.Errorf("no command exit code = %d, want 2", code)
	}
	if code := run([]string{"frobnicate"}); code != 2 {
		t.Errorf("unknown command exit code = %d, want 2", code)
	}
	if code := run([]string{"-h"}); code != 0 {
		t.Errorf("-h exit code = %d, want 0", code)
	}
}
