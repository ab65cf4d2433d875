package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/stickies/internal/apperr"
	"github.com/starford/stickies/internal/noteservice"
	"github.com/starford/stickies/internal/rewrite"
)

const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error  string `json:"error" validate:"required"`
	Failed int    `json:"failed,omitempty"`
	Total  int    `json:"total,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors to HTTP statuses. Unexpected errors are
// logged with op and reported as 500.
func writeError(w http.ResponseWriter, op string, err error) {
	var (
		partial *apperr.PartialDeleteError
		verr    validation.Error
	)
	switch {
	case errors.As(err, &partial):
		slog.Warn(op+" partially failed", slog.String("error", err.Error()))
		status := http.StatusBadRequest
		for _, e := range partial.Errs {
			if !errors.Is(e, apperr.ErrInvalid) {
				status = http.StatusInternalServerError
				break
			}
		}
		writeJSON(w, status, errResponse{
			Error:  partial.Error(),
			Failed: partial.Failed,
			Total:  partial.Total,
		})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, rewrite.ErrBusy):
		writeJSON(w, http.StatusConflict, errorBody("rewrite already running"))
	case errors.Is(err, apperr.ErrDecode):
		writeJSON(w, http.StatusBadRequest, errorBody("unreadable notes data"))
	case errors.Is(err, apperr.ErrNoFolder):
		writeJSON(w, http.StatusPreconditionFailed, errorBody("no backup folder selected"))
	case errors.Is(err, apperr.ErrAccess):
		writeJSON(w, http.StatusForbidden, errorBody("backup folder is not accessible"))
	case errors.Is(err, noteservice.ErrRewriteUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("rewrite is not configured"))
	case errors.Is(err, apperr.ErrInvalid), errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrRegistration):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("job registry rejected the request"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func jsonString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
