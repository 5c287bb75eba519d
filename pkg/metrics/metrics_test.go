package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/gc"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotMetrics(t *testing.T) {
	m := newSnapshotMetrics(prometheus.NewRegistry())

	m.RecordArchive(snapshot.PhasePostSave, snapshot.OutcomeArchived, 100)
	m.RecordArchive(snapshot.PhasePostSave, snapshot.OutcomeDuplicate, 100)
	m.RecordArchive(snapshot.PhasePreSave, snapshot.OutcomeArchived, 50)
	m.RecordPrune(snapshot.ReasonExpired, 3)
	m.RecordRestore(true, 20*time.Millisecond)
	m.RecordRestore(false, time.Millisecond)
	m.RecordStatsCache(true)
	m.RecordStatsCompute(time.Second, 42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.archives.WithLabelValues(snapshot.PhasePostSave, "archived")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.archives.WithLabelValues(snapshot.PhasePostSave, "duplicate")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.archivedBytes.WithLabelValues(snapshot.PhasePostSave)))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.archivedBytes.WithLabelValues(snapshot.PhasePreSave)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pruned.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restores.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restores.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statsCache.WithLabelValues("hit")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.statsEntries))
}

func TestSweepMetrics(t *testing.T) {
	m := newSweepMetrics(prometheus.NewRegistry())
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	m.RecordSweep(&gc.Stats{StartTime: end.Add(-time.Second), EndTime: end, DeletedCount: 4, FailedCount: 1}, nil)
	m.RecordSweep(&gc.Stats{StartTime: end, EndTime: end, DryRun: true}, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("dry_run")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.deleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failed))
	assert.Equal(t, float64(end.Unix()), testutil.ToFloat64(m.lastRun))
}

func TestAPIMetrics(t *testing.T) {
	m := newAPIMetrics(prometheus.NewRegistry())

	m.RecordRequest(http.MethodGet, "/api/v1/stats", http.StatusOK, 5*time.Millisecond)
	m.RecordRequest(http.MethodGet, "/api/v1/stats", http.StatusOK, 7*time.Millisecond)
	m.RecordRequest(http.MethodPost, "/api/v1/cleanup", http.StatusTooManyRequests, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/stats", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/cleanup", "429")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestConstructorsDisabled(t *testing.T) {
	if IsEnabled() {
		t.Skip("global registry already initialized")
	}
	assert.Nil(t, NewSnapshotMetrics())
	assert.Nil(t, NewSweepMetrics())
	assert.Nil(t, NewAPIMetrics())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewServer_DefaultPort(t *testing.T) {
	assert.Equal(t, 9090, NewServer(ServerConfig{}).Port())
	assert.Equal(t, 9191, NewServer(ServerConfig{Port: 9191}).Port())
}
