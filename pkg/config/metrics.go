package config

import (
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/api"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/gc"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/metrics"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
)

// MetricsResult contains all metrics-related components created from configuration.
//
// With metrics disabled every field is nil; the engine treats nil metrics
// as no-ops.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics
	Server *metrics.Server

	Snapshot snapshot.Metrics
	Sweep    gc.Metrics
	API      api.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled the global Prometheus registry is initialized and
// Prometheus-backed collectors are created for the coordinator, the
// sweeper and the admin API.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:   metrics.NewServer(metrics.ServerConfig{Port: cfg.Server.Metrics.Port}),
		Snapshot: metrics.NewSnapshotMetrics(),
		Sweep:    metrics.NewSweepMetrics(),
		API:      metrics.NewAPIMetrics(),
	}
}
