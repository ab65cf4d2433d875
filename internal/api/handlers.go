package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/stickies/internal/noteservice"
	"github.com/starford/stickies/internal/rewrite"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// noteID extracts the {id} URL parameter. It writes a 400 and returns false
// when the value is not a UUID.
func noteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return uuid.Nil, false
	}
	return id, true
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes in display order
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	items := h.svc.ListNotes(r.Context())
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes. An empty body creates a default note.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteInput	false	"Initial fields"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var in NoteInput
	if r.ContentLength != 0 && !decodeJSON(w, r, &in) {
		return
	}
	note, err := h.svc.CreateNote(r.Context(), in)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path	string		true	"Note id"
//	@Param			If-Match	header	string		false	"Checksum for optimistic concurrency"
//	@Param			body		body	NoteInput	true	"Changed fields"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var in NoteInput
	if !decodeJSON(w, r, &in) {
		return
	}
	note, err := h.svc.UpdateNote(r.Context(), id, in, r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}. Deleting an unknown id succeeds.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204		"Note deleted"
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearNotes handles DELETE /api/notes.
func (h *Handler) ClearNotes(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearAll(r.Context()); err != nil {
		writeError(w, "clear notes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rewrite handles POST /api/notes/{id}/rewrite and streams the note as it is
// rewritten. Events are "partial", then "done" or "error".
func (h *Handler) Rewrite(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var req RewriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("prompt is required"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody("streaming unsupported"))
		return
	}

	partials, err := h.svc.StartRewrite(r.Context(), id, req.Prompt)
	if err != nil {
		writeError(w, "rewrite", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for p := range partials {
		event, data := rewriteEvent(p)
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			slog.Warn("rewrite stream write failed", slog.String("error", err.Error()))
			return
		}
		flusher.Flush()
	}
}

func rewriteEvent(p rewrite.Partial) (string, string) {
	switch {
	case p.Err != nil:
		return "error", jsonString(map[string]string{"error": p.Err.Error()})
	case p.Done:
		return "done", jsonString(map[string]string{"text": p.Note.Text.String()})
	default:
		return "partial", jsonString(map[string]string{"text": p.Note.Text.String()})
	}
}

// RevertRewrite handles POST /api/notes/{id}/rewrite/revert.
func (h *Handler) RevertRewrite(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	note, err := h.svc.RevertRewrite(r.Context(), id)
	if err != nil {
		writeError(w, "revert rewrite", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}
