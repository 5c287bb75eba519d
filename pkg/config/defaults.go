package config

import (
	"strings"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/gc"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans keep their zero value; GetDefaultConfig switches features on
//   - Retention limits keep 0, which disables them
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyMediaDefaults(&cfg.Media)
	applySnapshotDefaults(&cfg.Snapshot)
	applyCleanupDefaults(&cfg.Cleanup)
	applyStatsDefaults(&cfg.Stats)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}
	if cfg.MediaContainer == "" {
		cfg.MediaContainer = "media"
	}
	if cfg.ArchiveContainer == "" {
		cfg.ArchiveContainer = "media-snapshots"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	// Defaults for every store type, so generated config files show them.
	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/tmp/mediasnap"
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
}

func applyMediaDefaults(cfg *MediaConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/mediasnap/records"
	}
}

func applySnapshotDefaults(cfg *SnapshotConfig) {
	if cfg.MediaRoot == "" {
		cfg.MediaRoot = snapshot.DefaultMediaRoot
	}
	if cfg.TrackedContentTypes == nil {
		cfg.TrackedContentTypes = append([]string(nil), snapshot.DefaultTrackedContentTypes...)
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = snapshot.DefaultRetryPolicy.Attempts
	}
	if cfg.Retry.Backoff == 0 {
		cfg.Retry.Backoff = snapshot.DefaultRetryPolicy.Backoff
	}
}

func applyCleanupDefaults(cfg *CleanupConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = gc.DefaultInterval
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = gc.DefaultRunTimeout
	}
}

func applyStatsDefaults(cfg *StatsConfig) {
	if cfg.TTL == 0 {
		cfg.TTL = snapshot.DefaultStatsTTL
	}
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Key == "" {
		cfg.Redis.Key = snapshot.DefaultRedisStatsKey
	}
}

// GetDefaultConfig returns a Config with all default values applied.
//
// Unlike ApplyDefaults on an empty Config, it also switches on the features
// a fresh installation wants: metrics, the admin API and the sweeper, with a
// 10-version, 365-day retention policy.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Metrics: MetricsConfig{Enabled: true},
			API:     APIConfig{Enabled: true, RequestsPerSecond: 5},
		},
		Snapshot: SnapshotConfig{
			MaxVersions: 10,
			MaxAgeDays:  365,
		},
		Cleanup: CleanupConfig{
			Enabled:          true,
			DeletesPerSecond: 50,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
