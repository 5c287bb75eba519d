package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Storage.Type != "filesystem" {
		t.Errorf("Expected default storage type filesystem, got %q", cfg.Storage.Type)
	}
	if cfg.Snapshot.MaxVersions != 0 {
		t.Errorf("Expected retention disabled without a file, got max_versions=%d", cfg.Snapshot.MaxVersions)
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: debug
  format: json
storage:
  type: memory
  archive_container: archive
snapshot:
  media_root: assets
  tracked_content_types: [Image]
  max_versions: 5
  max_age_days: 30
  retry:
    attempts: 2
    backoff: 50ms
cleanup:
  enabled: true
  interval: 6h
stats:
  ttl: 1m
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Storage.ArchiveContainer != "archive" || cfg.Storage.MediaContainer != "media" {
		t.Errorf("Unexpected containers: %q %q", cfg.Storage.MediaContainer, cfg.Storage.ArchiveContainer)
	}
	if cfg.Snapshot.MediaRoot != "assets" {
		t.Errorf("Expected media root assets, got %q", cfg.Snapshot.MediaRoot)
	}
	if len(cfg.Snapshot.TrackedContentTypes) != 1 || cfg.Snapshot.TrackedContentTypes[0] != "Image" {
		t.Errorf("Unexpected tracked types: %v", cfg.Snapshot.TrackedContentTypes)
	}
	if cfg.Snapshot.Retry.Backoff != 50*time.Millisecond {
		t.Errorf("Expected backoff 50ms, got %v", cfg.Snapshot.Retry.Backoff)
	}
	if cfg.Cleanup.Interval != 6*time.Hour {
		t.Errorf("Expected interval 6h, got %v", cfg.Cleanup.Interval)
	}
	if cfg.Stats.TTL != time.Minute {
		t.Errorf("Expected stats ttl 1m, got %v", cfg.Stats.TTL)
	}

	coord := cfg.CoordinatorConfig()
	if coord.Retention.MaxVersions != 5 || coord.Retention.MaxAgeDays != 30 {
		t.Errorf("Unexpected retention: %+v", coord.Retention)
	}
	if coord.SourceRetry.Attempts != 2 {
		t.Errorf("Expected 2 retry attempts, got %d", coord.SourceRetry.Attempts)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("snapshot:\n  max_versions: 5\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("MEDIASNAP_SNAPSHOT_MAX_VERSIONS", "12")
	t.Setenv("MEDIASNAP_STORAGE_TYPE", "memory")
	t.Setenv("MEDIASNAP_CLEANUP_DRY_RUN", "true")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Snapshot.MaxVersions != 12 {
		t.Errorf("Expected env to override max_versions to 12, got %d", cfg.Snapshot.MaxVersions)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected storage type memory from env, got %q", cfg.Storage.Type)
	}
	if !cfg.Cleanup.DryRun {
		t.Error("Expected dry_run from env")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("storage:\n  type: azure\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown storage type")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[storage]
type = "memory"

[snapshot]
max_versions = 3
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Snapshot.MaxVersions != 3 {
		t.Errorf("Expected max_versions 3, got %d", cfg.Snapshot.MaxVersions)
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := GetConfigDir(); got != filepath.Join("/xdg", "mediasnap") {
		t.Errorf("Unexpected config dir %q", got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join("/xdg", "mediasnap", "config.yaml") {
		t.Errorf("Unexpected config path %q", got)
	}
}
