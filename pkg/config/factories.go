package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/ratelimiter"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/api"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	blobfs "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob/fs"
	blobmemory "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob/memory"
	blobs3 "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob/s3"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/gc"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media/badger"
	mediamemory "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media/memory"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
	"github.com/redis/go-redis/v9"
)

// ============================================================================
// Blob stores
// ============================================================================

// CreateBlobStores creates the live media store and the archive store.
//
// This factory function uses the Type field to determine which store
// implementation to create, then decodes the type-specific configuration
// from the corresponding map.
//
// Supported types:
//   - "memory": two independent in-memory stores (ephemeral)
//   - "filesystem": one directory per container under filesystem.path
//   - "s3": one bucket per container, sharing a single client
func CreateBlobStores(ctx context.Context, cfg *StorageConfig) (mediaStore, archive blob.Store, err error) {
	switch cfg.Type {
	case "memory":
		return blobmemory.NewMemoryStore(), blobmemory.NewMemoryStore(), nil
	case "filesystem":
		return createFilesystemStores(ctx, cfg)
	case "s3":
		return createS3Stores(ctx, cfg)
	default:
		return nil, nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

func createFilesystemStores(ctx context.Context, cfg *StorageConfig) (blob.Store, blob.Store, error) {
	type FilesystemStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemStoreConfig
	if err := mapstructure.Decode(cfg.Filesystem, &storeCfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode filesystem storage config: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, nil, fmt.Errorf("filesystem storage: path is required")
	}

	mediaStore, err := blobfs.NewFSStore(ctx, filepath.Join(storeCfg.Path, cfg.MediaContainer))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create media store: %w", err)
	}
	archive, err := blobfs.NewFSStore(ctx, filepath.Join(storeCfg.Path, cfg.ArchiveContainer))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create archive store: %w", err)
	}

	logger.Info("Filesystem storage initialized: path=%s, media=%s, archive=%s",
		storeCfg.Path, cfg.MediaContainer, cfg.ArchiveContainer)
	return mediaStore, archive, nil
}

// S3StorageOptions are the keys of the storage.s3 section.
type S3StorageOptions struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

func decodeS3Options(options map[string]any) (S3StorageOptions, error) {
	var storeCfg S3StorageOptions
	if err := mapstructure.WeakDecode(options, &storeCfg); err != nil {
		return storeCfg, fmt.Errorf("failed to decode S3 storage config: %w", err)
	}
	if storeCfg.Region == "" {
		return storeCfg, fmt.Errorf("S3 storage: region is required")
	}
	return storeCfg, nil
}

func createS3Stores(ctx context.Context, cfg *StorageConfig) (blob.Store, blob.Store, error) {
	storeCfg, err := decodeS3Options(cfg.S3)
	if err != nil {
		return nil, nil, err
	}

	client, err := blobs3.NewClient(ctx, blobs3.ClientConfig{
		Region:          storeCfg.Region,
		Endpoint:        storeCfg.Endpoint,
		AccessKeyID:     storeCfg.AccessKeyID,
		SecretAccessKey: storeCfg.SecretAccessKey,
		MaxRetries:      storeCfg.MaxRetries,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	mediaStore, err := blobs3.NewS3Store(ctx, blobs3.S3StoreConfig{
		Client:    client,
		Bucket:    cfg.MediaContainer,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create media store: %w", err)
	}
	archive, err := blobs3.NewS3Store(ctx, blobs3.S3StoreConfig{
		Client:    client,
		Bucket:    cfg.ArchiveContainer,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create archive store: %w", err)
	}

	logger.Info("S3 storage initialized: region=%s, media=%s, archive=%s, prefix=%s",
		storeCfg.Region, cfg.MediaContainer, cfg.ArchiveContainer, storeCfg.KeyPrefix)
	return mediaStore, archive, nil
}

// ============================================================================
// Media records
// ============================================================================

// CreateMediaRepository creates the media record repository.
//
// Supported types:
//   - "memory": in-memory records (ephemeral)
//   - "badger": BadgerDB records (persistent)
func CreateMediaRepository(ctx context.Context, cfg *MediaConfig) (media.Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return mediamemory.NewMemoryRepository(), nil
	case "badger":
		return createBadgerRepository(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown media repository type: %q (supported: memory, badger)", cfg.Type)
	}
}

func createBadgerRepository(ctx context.Context, options map[string]any) (media.Repository, error) {
	type BadgerOptions struct {
		DBPath   string `mapstructure:"db_path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var opts BadgerOptions
	if err := mapstructure.WeakDecode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode badger media config: %w", err)
	}
	if opts.DBPath == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger media repository: db_path is required")
	}

	repo, err := badger.NewBadgerRepository(ctx, badger.BadgerRepositoryConfig{
		DBPath:   opts.DBPath,
		InMemory: opts.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger media repository: %w", err)
	}
	return repo, nil
}

// ============================================================================
// Engine wiring
// ============================================================================

func (c *Config) retention() snapshot.RetentionPolicy {
	return snapshot.RetentionPolicy{
		MaxVersions: c.Snapshot.MaxVersions,
		MaxAgeDays:  c.Snapshot.MaxAgeDays,
	}
}

// CoordinatorConfig converts the snapshot section.
func (c *Config) CoordinatorConfig() snapshot.Config {
	return snapshot.Config{
		MediaRoot:           c.Snapshot.MediaRoot,
		TrackedContentTypes: c.Snapshot.TrackedContentTypes,
		Retention:           c.retention(),
		SourceRetry: snapshot.RetryPolicy{
			Attempts: c.Snapshot.Retry.Attempts,
			Backoff:  c.Snapshot.Retry.Backoff,
		},
	}
}

// SweeperConfig converts the cleanup section.
func (c *Config) SweeperConfig() gc.Config {
	return gc.Config{
		Enabled:          c.Cleanup.Enabled,
		Interval:         c.Cleanup.Interval,
		RunTimeout:       c.Cleanup.RunTimeout,
		DeletesPerSecond: c.Cleanup.DeletesPerSecond,
		DryRun:           c.Cleanup.DryRun,
	}
}

// APIServerConfig converts the server.api section.
func (c *Config) APIServerConfig() api.ServerConfig {
	return api.ServerConfig{Port: c.Server.API.Port}
}

// APILimiter returns the limiter for mutating API requests.
func (c *Config) APILimiter() *ratelimiter.RateLimiter {
	return ratelimiter.New(c.Server.API.RequestsPerSecond, c.Server.API.Burst)
}

// CreateStatsSlot creates the statistics cache slot. The returned close
// function releases the backend connection and is never nil.
func CreateStatsSlot(cfg *StatsConfig) (snapshot.StatsSlot, func() error, error) {
	switch cfg.Backend {
	case "memory":
		return snapshot.NewMemorySlot(cfg.TTL), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logger.Info("Stats cache backed by redis at %s (key %s)", cfg.Redis.Addr, cfg.Redis.Key)
		return snapshot.NewRedisSlot(client, cfg.Redis.Key, cfg.TTL), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown stats backend: %q", cfg.Backend)
	}
}
