package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
)

// ============================================================================
// Health and statistics
// ============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.GetOrCompute(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ============================================================================
// Versions and restore
// ============================================================================

// EntryView is an archive entry as returned by the API.
type EntryView struct {
	Path             string     `json:"path"`
	Name             string     `json:"name"`
	OriginalFilename string     `json:"original_filename"`
	Timestamp        time.Time  `json:"timestamp"`
	SizeBytes        int64      `json:"size_bytes"`
	ContentType      string     `json:"content_type,omitempty"`
	UploaderName     string     `json:"uploader_name,omitempty"`
	UploadDate       *time.Time `json:"upload_date,omitempty"`
	Pinned           bool       `json:"pinned"`
	Note             string     `json:"note,omitempty"`
}

func viewOf(e snapshot.Entry) EntryView {
	v := EntryView{
		Path:             e.Path(),
		Name:             e.Name,
		OriginalFilename: e.OriginalFilename,
		Timestamp:        e.Timestamp,
		SizeBytes:        e.SizeBytes,
		ContentType:      e.ContentType,
		UploaderName:     e.UploaderName(),
		Pinned:           e.Pinned(),
		Note:             e.Note(),
	}
	if t, ok := e.UploadDate(); ok {
		v.UploadDate = &t
	}
	return v
}

// VersionsResponse is a page of versions.
type VersionsResponse struct {
	MediaID  int         `json:"media_id"`
	Folder   string      `json:"folder"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Entries  []EntryView `json:"entries"`
}

func (h *Handler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaID(w, r)
	if !ok {
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	pageSize, err := queryInt(r, "page_size", snapshot.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	result, err := h.coord.ListVersions(r.Context(), id, page, pageSize)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := VersionsResponse{
		MediaID:  result.MediaID,
		Folder:   result.Folder,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
		Entries:  make([]EntryView, 0, len(result.Entries)),
	}
	for _, e := range result.Entries {
		resp.Entries = append(resp.Entries, viewOf(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RestoreRequest selects the entry to restore.
type RestoreRequest struct {
	// Entry is an archive name or a full "<folder>/<name>" path.
	Entry string `json:"entry" validate:"required,max=1024"`
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, ok := mediaID(w, r)
	if !ok {
		return
	}
	var req RestoreRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.coord.Restore(r.Context(), id, req.Entry); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"media_id": id, "restored": req.Entry})
}

// ============================================================================
// Entry management
// ============================================================================

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.coord.Entry(r.Context(), entryPath(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(e))
}

// PinRequest sets or clears the pin.
type PinRequest struct {
	Pinned *bool `json:"pinned" validate:"required"`
}

func (h *Handler) handleSetPinned(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if !h.decode(w, r, &req) {
		return
	}
	path := entryPath(r)
	if err := h.coord.SetPinned(r.Context(), path, *req.Pinned); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "pinned": *req.Pinned})
}

// NoteRequest sets the note. An empty note clears it.
type NoteRequest struct {
	Note string `json:"note"`
}

func (h *Handler) handleSetNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	path := entryPath(r)
	if err := h.coord.SetNote(r.Context(), path, req.Note); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "note": req.Note})
}

// DeleteRequest lists archive paths to delete.
type DeleteRequest struct {
	Paths []string `json:"paths" validate:"required,min=1,max=500,dive,required"`
}

// DeleteItem is the per-path outcome of a delete.
type DeleteItem struct {
	Path    string     `json:"path"`
	Deleted bool       `json:"deleted"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// DeleteResponse reports every requested path.
type DeleteResponse struct {
	Deleted int          `json:"deleted"`
	Results []DeleteItem `json:"results"`
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp := DeleteResponse{Results: make([]DeleteItem, 0, len(req.Paths))}
	for _, res := range h.coord.DeleteEntries(r.Context(), req.Paths) {
		item := DeleteItem{Path: res.Path, Deleted: res.Err == nil}
		if res.Err != nil {
			_, code := statusOf(res.Err)
			item.Error = &ErrorBody{Code: code, Message: res.Err.Error()}
		} else {
			resp.Deleted++
		}
		resp.Results = append(resp.Results, item)
	}

	status := http.StatusOK
	if resp.Deleted < len(req.Paths) {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// ============================================================================
// Cleanup
// ============================================================================

// CleanupResponse summarizes an on-demand sweep.
type CleanupResponse struct {
	DryRun     bool   `json:"dry_run"`
	Folders    int    `json:"folders"`
	Selected   int    `json:"selected"`
	Expired    int    `json:"expired"`
	OverLimit  int    `json:"over_limit"`
	Deleted    int    `json:"deleted"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
	Summary    string `json:"summary"`
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if h.cleaner == nil {
		writeError(w, http.StatusNotImplemented, CodeNotSupported, "cleanup is not configured")
		return
	}

	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
	run := h.cleaner.RunNow
	if dryRun {
		run = h.cleaner.DryRun
	}

	stats, err := run(r.Context())
	if err != nil {
		logger.Error("API: cleanup failed: %v", err)
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CleanupResponse{
		DryRun:     stats.DryRun,
		Folders:    stats.FolderCount,
		Selected:   stats.SelectedCount,
		Expired:    stats.ExpiredCount,
		OverLimit:  stats.OverLimitCount,
		Deleted:    stats.DeletedCount,
		Failed:     stats.FailedCount,
		DurationMS: stats.Duration().Milliseconds(),
		Summary:    stats.Summary(),
	})
}
