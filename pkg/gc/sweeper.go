// Package gc runs archive retention across every media folder in the
// background.
//
// Retention normally runs on one folder right after each archive write. The
// sweeper catches what per-save cleanup cannot see:
//   - Folders of items that are no longer saved but whose entries age out
//   - Entries left behind when a per-save cleanup failed
//   - Policy changes (a lower MaxVersions) applied to existing archives
package gc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/ratelimiter"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
)

// Pruner is the part of snapshot.Coordinator the sweeper drives.
type Pruner interface {
	ScanFolders(ctx context.Context) (map[string][]snapshot.Entry, error)
	PruneFolder(ctx context.Context, folder string, opts snapshot.PruneOptions) (*snapshot.PruneResult, error)
	Retention() snapshot.RetentionPolicy
}

// Metrics records completed sweeps. A nil Metrics is allowed.
type Metrics interface {
	RecordSweep(stats *Stats, err error)
}

// Defaults applied by NewSweeper.
const (
	DefaultInterval   = 24 * time.Hour
	DefaultRunTimeout = 30 * time.Minute
)

// Config contains configuration for the sweeper.
type Config struct {
	// Enabled controls whether the background loop runs (default: false)
	Enabled bool

	// Interval is how often to sweep (default: 24h)
	Interval time.Duration

	// RunTimeout bounds a single background sweep (default: 30m)
	RunTimeout time.Duration

	// DeletesPerSecond throttles archive deletes. 0 means unlimited.
	DeletesPerSecond uint

	// Burst is the delete burst size (default: DeletesPerSecond)
	Burst uint

	// DryRun logs what would be deleted without deleting
	DryRun bool
}

// Sweeper applies the retention policy to every archive folder, either on a
// ticker or on demand.
//
// Thread Safety: Safe for concurrent use. Sweeps never overlap.
type Sweeper struct {
	pruner  Pruner
	config  Config
	limiter *ratelimiter.RateLimiter
	metrics Metrics
	now     func() time.Time

	runMu     sync.Mutex
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewSweeper creates a sweeper. It is not started.
func NewSweeper(pruner Pruner, config Config, m Metrics) (*Sweeper, error) {
	if pruner == nil {
		return nil, fmt.Errorf("pruner is required")
	}

	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultRunTimeout
	}
	if config.Burst == 0 {
		config.Burst = config.DeletesPerSecond
	}

	return &Sweeper{
		pruner:  pruner,
		config:  config,
		limiter: ratelimiter.New(config.DeletesPerSecond, config.Burst),
		metrics: m,
		now:     time.Now,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins background sweeps. Subsequent calls are no-ops.
func (s *Sweeper) Start() {
	if !s.config.Enabled {
		logger.Info("Retention sweeper disabled")
		return
	}

	s.startOnce.Do(func() {
		logger.Info("Starting retention sweeper: interval=%s deletes_per_second=%d dry_run=%v",
			s.config.Interval, s.config.DeletesPerSecond, s.config.DryRun)
		s.started.Store(true)
		go s.worker()
	})
}

// Stop signals the worker and waits for an in-progress sweep to finish or
// ctx to expire. Safe to call multiple times.
func (s *Sweeper) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	s.stopOnce.Do(func() {
		logger.Info("Stopping retention sweeper...")
		close(s.stopCh)
	})

	select {
	case <-s.doneCh:
		logger.Info("Retention sweeper stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Retention sweeper shutdown timeout")
		return ctx.Err()
	}
}

// RunNow sweeps immediately and blocks until done. It waits for a running
// background sweep first.
func (s *Sweeper) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running retention sweep (manual trigger)...")
	return s.sweep(ctx, s.config.DryRun)
}

// DryRun reports what a sweep would delete without deleting anything.
func (s *Sweeper) DryRun(ctx context.Context) (*Stats, error) {
	return s.sweep(ctx, true)
}

func (s *Sweeper) worker() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
			// Stop cancels an in-flight sweep.
			go func() {
				select {
				case <-s.stopCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			stats, err := s.sweep(ctx, s.config.DryRun)
			cancel()

			if err != nil {
				logger.Error("Retention sweep failed: %v", err)
			} else {
				logger.Info("Retention sweep completed: %s", stats.Summary())
			}

		case <-s.stopCh:
			return
		}
	}
}

// sweep runs one pass:
//  1. Scan the archive once, grouped by folder
//  2. Select deletions per folder from the scan
//  3. Prune only folders with something to delete, under the folder lock
func (s *Sweeper) sweep(ctx context.Context, dryRun bool) (stats *Stats, err error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	stats = &Stats{StartTime: s.now(), DryRun: dryRun}
	defer func() {
		stats.EndTime = s.now()
		if s.metrics != nil {
			s.metrics.RecordSweep(stats, err)
		}
	}()

	policy := s.pruner.Retention()
	if !policy.Enabled() {
		logger.Info("Sweep: no retention limits configured, nothing to do")
		return stats, nil
	}

	folders, err := s.pruner.ScanFolders(ctx)
	if err != nil {
		return stats, err
	}
	stats.FolderCount = len(folders)

	names := make([]string, 0, len(folders))
	for name := range folders {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := snapshot.PruneOptions{DryRun: dryRun, BeforeDelete: s.limiter.Wait}

	for _, folder := range names {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if len(policy.Select(folders[folder], s.now())) == 0 {
			continue
		}

		result, err := s.pruner.PruneFolder(ctx, folder, opts)
		if result != nil {
			stats.add(result)
		}
		if err != nil {
			return stats, fmt.Errorf("folder %s: %w", folder, err)
		}

		if dryRun {
			for _, d := range result.Selected {
				logger.Info("Sweep: DRY RUN - would delete %s (%s)", d.Entry.Path(), d.Reason)
			}
		}
	}

	return stats, nil
}

// Stats contains statistics from a sweep.
type Stats struct {
	StartTime      time.Time // When the sweep started
	EndTime        time.Time // When the sweep ended
	DryRun         bool      // Nothing was deleted
	FolderCount    int       // Folders found in the archive
	PrunedFolders  int       // Folders with at least one selected entry
	SelectedCount  int       // Entries selected for deletion
	ExpiredCount   int       // Selected because of the age limit
	OverLimitCount int       // Selected because of the count limit
	DeletedCount   int       // Entries actually deleted
	FailedCount    int       // Entries that failed to delete
}

func (s *Stats) add(r *snapshot.PruneResult) {
	if len(r.Selected) > 0 {
		s.PrunedFolders++
	}
	s.SelectedCount += len(r.Selected)
	for _, d := range r.Selected {
		if d.Reason == snapshot.ReasonExpired {
			s.ExpiredCount++
		} else {
			s.OverLimitCount++
		}
	}
	s.DeletedCount += r.Deleted
	s.FailedCount += r.Failed
}

// Duration returns the total sweep duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the sweep.
func (s *Stats) Summary() string {
	return fmt.Sprintf("folders=%d pruned_folders=%d selected=%d expired=%d over_limit=%d deleted=%d failed=%d dry_run=%v duration=%s",
		s.FolderCount, s.PrunedFolders, s.SelectedCount, s.ExpiredCount, s.OverLimitCount,
		s.DeletedCount, s.FailedCount, s.DryRun, s.Duration())
}
