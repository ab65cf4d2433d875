package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListBackups handles GET /api/backups.
//
//	@Summary		List snapshots in the backup folder, newest first
//	@Tags			backups
//	@Produce		json
//	@Success		200	{object}	BackupListResponse
//	@Failure		412	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backups [get]
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Backups(r.Context())
	if err != nil {
		writeError(w, "list backups", err)
		return
	}
	writeJSON(w, http.StatusOK, BackupListResponse{Backups: entries})
}

// CreateBackup handles POST /api/backups.
//
//	@Summary		Write a snapshot of the saved notes now
//	@Tags			backups
//	@Produce		json
//	@Success		201	{object}	BackupCreatedResponse
//	@Failure		412	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backups [post]
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	name, err := h.svc.CreateBackup(r.Context())
	if err != nil {
		writeError(w, "create backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, BackupCreatedResponse{Name: name})
}

// DeleteBackups handles DELETE /api/backups. Snapshots that were removed
// stay removed when others fail.
//
//	@Summary		Delete snapshots
//	@Tags			backups
//	@Accept			json
//	@Param			body	body	DeleteBackupsRequest	true	"Snapshot names"
//	@Success		204		"Snapshots deleted"
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backups [delete]
func (h *Handler) DeleteBackups(w http.ResponseWriter, r *http.Request) {
	var req DeleteBackupsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Names) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("names are required"))
		return
	}
	if err := h.svc.DeleteBackups(r.Context(), req.Names); err != nil {
		writeError(w, "delete backups", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewBackup handles GET /api/backups/{name}.
func (h *Handler) PreviewBackup(w http.ResponseWriter, r *http.Request) {
	preview, err := h.svc.PreviewBackup(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "preview backup", err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// RestoreBackup handles POST /api/backups/{name}/restore and replaces the
// current notes with the snapshot.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.RestoreBackup(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "restore backup", err)
		return
	}
	writeJSON(w, http.StatusOK, RestoreResponse{Restored: n})
}

// GetFolder handles GET /api/folder.
func (h *Handler) GetFolder(w http.ResponseWriter, r *http.Request) {
	path, ok := h.svc.Folder(r.Context())
	writeJSON(w, http.StatusOK, FolderResponse{Path: path, Selected: ok})
}

// SetFolder handles PUT /api/folder.
func (h *Handler) SetFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.SetFolder(r.Context(), req.Path); err != nil {
		writeError(w, "set folder", err)
		return
	}
	path, ok := h.svc.Folder(r.Context())
	writeJSON(w, http.StatusOK, FolderResponse{Path: path, Selected: ok})
}

// ClearFolder handles DELETE /api/folder.
func (h *Handler) ClearFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearFolder(r.Context()); err != nil {
		writeError(w, "clear folder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SchedulerState handles GET /api/scheduler.
//
//	@Summary		Report whether auto-backup is enabled and its interval
//	@Tags			scheduler
//	@Produce		json
//	@Success		200	{object}	scheduler.State
//	@Security		BearerAuth
//	@Router			/scheduler [get]
func (h *Handler) SchedulerState(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.SchedulerState(r.Context())
	if err != nil {
		writeError(w, "scheduler state", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// EnableScheduler handles POST /api/scheduler/enable.
func (h *Handler) EnableScheduler(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.EnableScheduler(r.Context())
	if err != nil {
		writeError(w, "enable scheduler", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// DisableScheduler handles POST /api/scheduler/disable.
func (h *Handler) DisableScheduler(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.DisableScheduler(r.Context())
	if err != nil {
		writeError(w, "disable scheduler", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SetInterval handles PUT /api/scheduler/interval.
func (h *Handler) SetInterval(w http.ResponseWriter, r *http.Request) {
	var req IntervalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := req.duration()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid interval"))
		return
	}
	st, err := h.svc.SetInterval(r.Context(), d)
	if err != nil {
		writeError(w, "set interval", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
