package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/config"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/gc"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/host"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
)

// app holds the engine wired from configuration.
type app struct {
	cfg        *config.Config
	metrics    *config.MetricsResult
	records    media.Repository
	mediaStore blob.Store
	archive    blob.Store
	stats      *snapshot.StatsCache
	coord      *snapshot.Coordinator
	dispatcher *host.Dispatcher
	sweeper    *gc.Sweeper

	closers []func() error
}

// loadConfig loads the configuration and applies the logging section.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return nil, fmt.Errorf("failed to set log output: %w", err)
	}
	return cfg, nil
}

// newApp builds the engine. withMetrics initializes the Prometheus registry
// when the configuration enables it; one-shot commands skip it.
func newApp(ctx context.Context, cfg *config.Config, withMetrics bool) (*app, error) {
	a := &app{cfg: cfg, metrics: &config.MetricsResult{}}
	if err := a.wire(ctx, withMetrics); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, withMetrics bool) error {
	cfg := a.cfg
	var err error

	if withMetrics {
		a.metrics = config.InitializeMetrics(cfg)
	}

	a.records, err = config.CreateMediaRepository(ctx, &cfg.Media)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.records.Close)

	a.mediaStore, a.archive, err = config.CreateBlobStores(ctx, &cfg.Storage)
	if err != nil {
		return err
	}
	if err := host.EnsureContainers(ctx, a.mediaStore, a.archive); err != nil {
		return err
	}

	slot, closeSlot, err := config.CreateStatsSlot(&cfg.Stats)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeSlot)
	a.stats = snapshot.NewStatsCache(snapshot.NewAggregator(a.archive, a.metrics.Snapshot), slot, a.metrics.Snapshot)

	a.coord, err = snapshot.NewCoordinator(a.mediaStore, a.archive, a.records, cfg.CoordinatorConfig(),
		snapshot.WithInvalidator(a.stats),
		snapshot.WithMetrics(a.metrics.Snapshot),
	)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	a.dispatcher = host.NewDispatcher(a.records, a.mediaStore, a.coord)

	a.sweeper, err = gc.NewSweeper(a.coord, cfg.SweeperConfig(), a.metrics.Sweep)
	if err != nil {
		return fmt.Errorf("failed to create sweeper: %w", err)
	}

	return nil
}

// Close releases the repository and cache connections.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("Error during cleanup: %v", err)
	}
	logger.Sync()
}
