package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	blobfs "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob/fs"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
)

func TestCreateBlobStores_Memory(t *testing.T) {
	mediaStore, archive, err := CreateBlobStores(context.Background(), &StorageConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory stores: %v", err)
	}
	if mediaStore == nil || archive == nil {
		t.Fatal("Expected non-nil stores")
	}
	if mediaStore == archive {
		t.Fatal("Expected independent media and archive stores")
	}
}

func TestCreateBlobStores_Filesystem(t *testing.T) {
	base := t.TempDir()
	cfg := &StorageConfig{
		Type:             "filesystem",
		MediaContainer:   "media",
		ArchiveContainer: "media-snapshots",
		Filesystem:       map[string]any{"path": base},
	}

	mediaStore, archive, err := CreateBlobStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create filesystem stores: %v", err)
	}

	if got := mediaStore.(*blobfs.FSStore).BasePath(); got != filepath.Join(base, "media") {
		t.Errorf("Unexpected media path %q", got)
	}
	if got := archive.(*blobfs.FSStore).BasePath(); got != filepath.Join(base, "media-snapshots") {
		t.Errorf("Unexpected archive path %q", got)
	}
	if _, err := os.Stat(filepath.Join(base, "media-snapshots")); err != nil {
		t.Errorf("Expected archive directory to exist: %v", err)
	}
}

func TestCreateBlobStores_FilesystemMissingPath(t *testing.T) {
	cfg := &StorageConfig{Type: "filesystem", Filesystem: map[string]any{}}

	_, _, err := CreateBlobStores(context.Background(), cfg)
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
	if !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected 'path is required' error, got: %v", err)
	}
}

func TestCreateBlobStores_S3MissingRegion(t *testing.T) {
	cfg := &StorageConfig{Type: "s3", S3: map[string]any{"endpoint": "http://localhost:4566"}}

	_, _, err := CreateBlobStores(context.Background(), cfg)
	if err == nil {
		t.Fatal("Expected error for missing region")
	}
	if !strings.Contains(err.Error(), "region is required") {
		t.Errorf("Expected 'region is required' error, got: %v", err)
	}
}

func TestDecodeS3Options(t *testing.T) {
	opts, err := decodeS3Options(map[string]any{
		"region":      "eu-west-1",
		"endpoint":    "http://localhost:4566",
		"key_prefix":  "prod/",
		"max_retries": "4",
	})
	if err != nil {
		t.Fatalf("decodeS3Options failed: %v", err)
	}
	if opts.Region != "eu-west-1" || opts.KeyPrefix != "prod/" || opts.MaxRetries != 4 {
		t.Errorf("Unexpected options: %+v", opts)
	}
}

func TestCreateBlobStores_UnknownType(t *testing.T) {
	if _, _, err := CreateBlobStores(context.Background(), &StorageConfig{Type: "azure"}); err == nil {
		t.Fatal("Expected error for unknown storage type")
	}
}

func TestCreateMediaRepository(t *testing.T) {
	ctx := context.Background()

	repo, err := CreateMediaRepository(ctx, &MediaConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory repository: %v", err)
	}
	_ = repo.Close()

	repo, err = CreateMediaRepository(ctx, &MediaConfig{
		Type:   "badger",
		Badger: map[string]any{"db_path": filepath.Join(t.TempDir(), "records")},
	})
	if err != nil {
		t.Fatalf("Failed to create badger repository: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if _, err := CreateMediaRepository(ctx, &MediaConfig{Type: "badger", Badger: map[string]any{}}); err == nil {
		t.Fatal("Expected error for badger without db_path")
	}
	if _, err := CreateMediaRepository(ctx, &MediaConfig{Type: "sql"}); err == nil {
		t.Fatal("Expected error for unknown repository type")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := CreateMediaRepository(cancelled, &MediaConfig{Type: "memory"}); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}

func TestCreateStatsSlot(t *testing.T) {
	slot, closeFn, err := CreateStatsSlot(&StatsConfig{Backend: "memory", TTL: time.Minute})
	if err != nil {
		t.Fatalf("Failed to create memory slot: %v", err)
	}
	if _, ok := slot.(*snapshot.MemorySlot); !ok {
		t.Errorf("Expected *snapshot.MemorySlot, got %T", slot)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	// The redis client connects lazily, so no server is needed here.
	slot, closeFn, err = CreateStatsSlot(&StatsConfig{
		Backend: "redis",
		TTL:     time.Minute,
		Redis:   RedisConfig{Addr: "127.0.0.1:1", Key: "test:stats"},
	})
	if err != nil {
		t.Fatalf("Failed to create redis slot: %v", err)
	}
	if _, ok := slot.(*snapshot.RedisSlot); !ok {
		t.Errorf("Expected *snapshot.RedisSlot, got %T", slot)
	}
	_ = closeFn()

	if _, _, err := CreateStatsSlot(&StatsConfig{Backend: "memcached"}); err == nil {
		t.Fatal("Expected error for unknown backend")
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Metrics.Enabled = false

	result := InitializeMetrics(cfg)
	if result.Server != nil || result.Snapshot != nil || result.Sweep != nil || result.API != nil {
		t.Errorf("Expected empty result with metrics disabled, got %+v", result)
	}
}
