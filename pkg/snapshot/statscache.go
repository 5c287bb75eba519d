package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultStatsTTL is how long computed stats stay valid.
const DefaultStatsTTL = 5 * time.Minute

// StatsComputer produces fresh statistics. *Aggregator implements it.
type StatsComputer interface {
	Compute(ctx context.Context) (*StorageStats, error)
}

// Invalidator is notified after any archive change that affects statistics.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// StatsSlot holds at most one cached StorageStats value and expires it on its
// own. A slot error is treated as a miss by StatsCache.
type StatsSlot interface {
	Get(ctx context.Context) (*StorageStats, bool, error)
	Set(ctx context.Context, stats *StorageStats) error
	Clear(ctx context.Context) error
}

// ============================================================================
// StatsCache
// ============================================================================

// StatsCache is a time-boxed cache in front of a StatsComputer.
//
// Concurrent GetOrCompute calls on a cold cache may each compute. A compute
// that overlaps an Invalidate does not store its result.
type StatsCache struct {
	computer   StatsComputer
	slot       StatsSlot
	metrics    Metrics
	generation atomic.Uint64
}

// NewStatsCache creates a cache over computer backed by slot.
func NewStatsCache(computer StatsComputer, slot StatsSlot, m Metrics) *StatsCache {
	return &StatsCache{computer: computer, slot: slot, metrics: metricsOrNoop(m)}
}

// GetOrCompute returns cached stats when present, otherwise computes and
// caches them.
func (c *StatsCache) GetOrCompute(ctx context.Context) (*StorageStats, error) {
	stats, ok, err := c.slot.Get(ctx)
	if err != nil {
		logger.Warn("Stats cache read failed, recomputing: %v", err)
	}
	if ok {
		c.metrics.RecordStatsCache(true)
		return stats, nil
	}
	c.metrics.RecordStatsCache(false)

	gen := c.generation.Load()
	stats, err = c.computer.Compute(ctx)
	if err != nil {
		return nil, err
	}

	if c.generation.Load() == gen {
		if err := c.slot.Set(ctx, stats); err != nil {
			logger.Warn("Stats cache write failed: %v", err)
		}
	}

	return stats, nil
}

// Invalidate drops the cached value.
func (c *StatsCache) Invalidate(ctx context.Context) {
	c.generation.Add(1)
	if err := c.slot.Clear(ctx); err != nil {
		logger.Warn("Stats cache invalidation failed: %v", err)
	}
}

// ============================================================================
// In-process slot
// ============================================================================

const statsSlotKey = "stats"

// MemorySlot keeps the value in a size-1 expirable LRU.
type MemorySlot struct {
	lru *expirable.LRU[string, *StorageStats]
}

// NewMemorySlot creates a slot whose value expires after ttl.
func NewMemorySlot(ttl time.Duration) *MemorySlot {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &MemorySlot{lru: expirable.NewLRU[string, *StorageStats](1, nil, ttl)}
}

func (s *MemorySlot) Get(context.Context) (*StorageStats, bool, error) {
	stats, ok := s.lru.Get(statsSlotKey)
	return stats, ok, nil
}

func (s *MemorySlot) Set(_ context.Context, stats *StorageStats) error {
	s.lru.Add(statsSlotKey, stats)
	return nil
}

func (s *MemorySlot) Clear(context.Context) error {
	s.lru.Remove(statsSlotKey)
	return nil
}

// ============================================================================
// Redis slot
// ============================================================================

// DefaultRedisStatsKey is the key RedisSlot uses when none is configured.
const DefaultRedisStatsKey = "mediasnap:stats"

// RedisSlot stores the value as JSON in Redis so several processes share one
// cached value and one invalidation.
type RedisSlot struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisSlot creates a slot on client. Empty key and non-positive ttl fall
// back to the defaults.
func NewRedisSlot(client redis.Cmdable, key string, ttl time.Duration) *RedisSlot {
	if key == "" {
		key = DefaultRedisStatsKey
	}
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &RedisSlot{client: client, key: key, ttl: ttl}
}

func (s *RedisSlot) Get(ctx context.Context) (*StorageStats, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var stats StorageStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, fmt.Errorf("unmarshal cache value for %s: %w", s.key, err)
	}
	return &stats, true, nil
}

func (s *RedisSlot) Set(ctx context.Context, stats *StorageStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", s.key, err)
	}
	if err := s.client.Set(ctx, s.key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisSlot) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", s.key, err)
	}
	return nil
}
