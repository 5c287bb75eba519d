package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/snapshot"
)

// Error codes returned in ErrorBody.Code.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnavailable  = "UNAVAILABLE"
	CodeInternal     = "INTERNAL"
	CodeNotSupported = "NOT_SUPPORTED"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	OpID    string `json:"op_id,omitempty"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("API: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// statusOf maps engine errors to HTTP status and code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, snapshot.ErrMediaNotFound),
		errors.Is(err, snapshot.ErrEntryNotFound),
		errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, snapshot.ErrPinned):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, snapshot.ErrNoteTooLong),
		errors.Is(err, snapshot.ErrNoFile),
		errors.Is(err, blob.ErrInvalidKey):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, snapshot.ErrUntracked):
		return http.StatusUnprocessableEntity, CodeNotSupported
	case errors.Is(err, blob.ErrUnavailable):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeEngineError writes err using statusOf. Restore failures carry their
// operation id.
func writeEngineError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	body := ErrorBody{Code: code, Message: err.Error()}

	var rerr *snapshot.RestoreError
	if errors.As(err, &rerr) {
		body.OpID = rerr.OpID
	}
	if status == http.StatusInternalServerError {
		logger.Error("API: %v", err)
	}

	writeJSON(w, status, errorResponse{Error: body})
}
