// Package api is the admin HTTP surface of the snapshot engine: version
// listing, restore, pin and note edits, explicit deletes, storage statistics
// and on-demand cleanup.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/ratelimiter"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/gc"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Cleaner runs retention sweeps. *gc.Sweeper implements it.
type Cleaner interface {
	RunNow(ctx context.Context) (*gc.Stats, error)
	DryRun(ctx context.Context) (*gc.Stats, error)
}

// StatsProvider returns storage statistics. *snapshot.StatsCache
// implements it.
type StatsProvider interface {
	GetOrCompute(ctx context.Context) (*snapshot.StorageStats, error)
}

// Deps are the handler's collaborators. Cleaner, Limiter and Metrics are
// optional.
type Deps struct {
	Coordinator *snapshot.Coordinator
	Stats       StatsProvider
	Cleaner     Cleaner
	Limiter     *ratelimiter.RateLimiter
	Metrics     Metrics
}

// Handler serves the admin API.
type Handler struct {
	coord    *snapshot.Coordinator
	stats    StatsProvider
	cleaner  Cleaner
	limiter  *ratelimiter.RateLimiter
	metrics  Metrics
	validate *validator.Validate
}

// NewHandler creates the API handler.
func NewHandler(deps Deps) (*Handler, error) {
	if deps.Coordinator == nil || deps.Stats == nil {
		return nil, fmt.Errorf("coordinator and stats provider are required")
	}
	return &Handler{
		coord:    deps.Coordinator,
		stats:    deps.Stats,
		cleaner:  deps.Cleaner,
		limiter:  deps.Limiter,
		metrics:  deps.Metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Router returns the routes:
//
//	GET    /healthz
//	GET    /api/v1/stats
//	GET    /api/v1/media/{id}/versions?page=&page_size=
//	POST   /api/v1/media/{id}/restore
//	GET    /api/v1/snapshots/{folder}/{name}
//	PUT    /api/v1/snapshots/{folder}/{name}/pin
//	PUT    /api/v1/snapshots/{folder}/{name}/note
//	POST   /api/v1/snapshots/delete
//	POST   /api/v1/cleanup?dry_run=true
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if h.metrics != nil {
		r.Use(metricsMiddleware(h.metrics))
	}

	r.Get("/healthz", h.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", h.handleStats)

		r.Route("/media/{id}", func(r chi.Router) {
			r.Get("/versions", h.handleListVersions)
			r.With(h.throttle).Post("/restore", h.handleRestore)
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.With(h.throttle).Post("/delete", h.handleDelete)
			r.Get("/{folder}/{name}", h.handleGetEntry)
			r.Put("/{folder}/{name}/pin", h.handleSetPinned)
			r.Put("/{folder}/{name}/note", h.handleSetNote)
		})

		r.With(h.throttle).Post("/cleanup", h.handleCleanup)
	})

	return r
}

// throttle rejects mutating requests beyond the configured rate.
func (h *Handler) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
// Request helpers
// ============================================================================

// decode reads a JSON body into v and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return false
	}
	return true
}

func mediaID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "media id must be a positive integer")
		return 0, false
	}
	return id, true
}

func entryPath(r *http.Request) string {
	return chi.URLParam(r, "folder") + "/" + chi.URLParam(r, "name")
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}
