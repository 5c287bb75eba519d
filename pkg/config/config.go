package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// appName names the config directory and the environment prefix.
const appName = "mediasnap"

// Config represents the complete mediasnap configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (MEDIASNAP_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own options. The Storage and Media
// sections carry type-specific maps (e.g. storage.s3, media.badger) and only
// the map matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains process-wide settings and the HTTP listeners
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Storage selects the blob backend holding the live media and archive containers
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Media selects where media records are persisted
	Media MediaConfig `mapstructure:"media" yaml:"media"`

	// Snapshot controls which items are versioned and how many versions are kept
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`

	// Cleanup controls the background retention sweeper
	Cleanup CleanupConfig `mapstructure:"cleanup" yaml:"cleanup"`

	// Stats controls the storage statistics cache
	Stats StatsConfig `mapstructure:"stats" yaml:"stats"`
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

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the admin HTTP API
	API APIConfig `mapstructure:"api" yaml:"api"`
}

// MetricsConfig configures the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// APIConfig configures the admin HTTP API.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`

	// RequestsPerSecond throttles restore, delete and cleanup requests.
	// 0 means unlimited.
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the request burst size (default: RequestsPerSecond)
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// StorageConfig specifies the blob backend.
//
// The live media files and the archive live in two containers of the same
// backend: directories for filesystem, buckets for s3.
type StorageConfig struct {
	// Type specifies which blob store implementation to use
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory filesystem s3"`

	// MediaContainer holds the live media files
	MediaContainer string `mapstructure:"media_container" yaml:"media_container" validate:"required"`

	// ArchiveContainer holds the snapshots
	ArchiveContainer string `mapstructure:"archive_container" yaml:"archive_container" validate:"required"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// MediaConfig specifies the media record repository.
type MediaConfig struct {
	// Type specifies which repository implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// SnapshotConfig controls versioning.
type SnapshotConfig struct {
	// MediaRoot is the leading path segment of media file paths ("media" for "/media/a1b2c3/photo.jpg")
	MediaRoot string `mapstructure:"media_root" yaml:"media_root" validate:"required,excludesall=/"`

	// TrackedContentTypes lists the content type aliases that are versioned
	TrackedContentTypes []string `mapstructure:"tracked_content_types" yaml:"tracked_content_types" validate:"dive,required"`

	// MaxVersions keeps at most this many snapshots per item. 0 disables the limit.
	MaxVersions int `mapstructure:"max_versions" yaml:"max_versions" validate:"gte=0"`

	// MaxAgeDays drops snapshots older than this many days. 0 disables the limit.
	MaxAgeDays int `mapstructure:"max_age_days" yaml:"max_age_days" validate:"gte=0"`

	// Retry governs reads of a just-written source file
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// RetryConfig is a fixed-count, fixed-backoff retry.
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts" yaml:"attempts" validate:"gte=1,lte=10"`
	Backoff  time.Duration `mapstructure:"backoff" yaml:"backoff" validate:"gte=0"`
}

// CleanupConfig controls the background retention sweeper.
type CleanupConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between sweeps
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`

	// RunTimeout bounds a single sweep
	RunTimeout time.Duration `mapstructure:"run_timeout" yaml:"run_timeout" validate:"gt=0"`

	// DryRun logs what would be deleted without deleting
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// DeletesPerSecond throttles archive deletes. 0 means unlimited.
	DeletesPerSecond uint `mapstructure:"deletes_per_second" yaml:"deletes_per_second"`
}

// StatsConfig controls the storage statistics cache.
type StatsConfig struct {
	// TTL is how long computed statistics are served from the cache
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gt=0"`

	// Backend selects the cache slot
	// Valid values: memory, redis
	Backend string `mapstructure:"backend" yaml:"backend" validate:"required,oneof=memory redis"`

	// Redis is only used when Backend = "redis"
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig locates the shared statistics cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db" validate:"gte=0"`
	Key      string `mapstructure:"key" yaml:"key"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MEDIASNAP_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath searches the default location. A missing file is not
// an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: MEDIASNAP_SNAPSHOT_MAX_VERSIONS=5
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only overrides keys viper already knows about, so the
	// scalar keys are bound explicitly.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys are the settings that can be supplied through the environment
// without appearing in the config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"server.metrics.enabled",
	"server.metrics.port",
	"server.api.enabled",
	"server.api.port",
	"server.api.requests_per_second",
	"storage.type",
	"storage.media_container",
	"storage.archive_container",
	"media.type",
	"snapshot.media_root",
	"snapshot.max_versions",
	"snapshot.max_age_days",
	"cleanup.enabled",
	"cleanup.interval",
	"cleanup.dry_run",
	"cleanup.deletes_per_second",
	"stats.ttl",
	"stats.backend",
	"stats.redis.addr",
	"stats.redis.password",
	"stats.redis.db",
	"stats.redis.key",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
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
		return filepath.Join(xdgConfig, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", appName)
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
