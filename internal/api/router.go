package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/stickies/internal/ipc"
	"github.com/starford/stickies/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// receiver, if non-nil, handles backup triggers from the recurring job.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, receiver *ipc.Receiver) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Delete("/notes", h.ClearNotes)
	r.Post("/notes/import", h.Import)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)
	r.Get("/notes/{id}/export", h.ExportNote)
	r.Post("/notes/{id}/rewrite", h.Rewrite)
	r.Post("/notes/{id}/rewrite/revert", h.RevertRewrite)
	r.Get("/export", h.Export)

	// Backups.
	r.Get("/backups", h.ListBackups)
	r.Post("/backups", h.CreateBackup)
	r.Delete("/backups", h.DeleteBackups)
	r.Get("/backups/{name}", h.PreviewBackup)
	r.Post("/backups/{name}/restore", h.RestoreBackup)

	r.Get("/folder", h.GetFolder)
	r.Put("/folder", h.SetFolder)
	r.Delete("/folder", h.ClearFolder)

	r.Get("/scheduler", h.SchedulerState)
	r.Post("/scheduler/enable", h.EnableScheduler)
	r.Post("/scheduler/disable", h.DisableScheduler)
	r.Put("/scheduler/interval", h.SetInterval)

	if receiver != nil {
		r.Post(strings.TrimPrefix(ipc.TriggerPath, "/api"), TriggerHandler(receiver))
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

// TriggerHandler accepts ipc messages posted by the recurring job.
func TriggerHandler(receiver *ipc.Receiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg ipc.Message
		if !decodeJSON(w, r, &msg) {
			return
		}
		if msg.Kind != ipc.TriggerBackup {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown message kind"))
			return
		}
		if err := receiver.Handle(r.Context(), msg); err != nil {
			writeError(w, "triggered backup", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
