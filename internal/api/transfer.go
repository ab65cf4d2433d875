package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/starford/stickies/internal/notestore"
)

const maxUploadBytes = 50 << 20 // 50 MB

// Import handles POST /api/notes/import (multipart/form-data, field "file").
// The policy query parameter selects the merge policy; dry_run=1 returns the
// plan without applying it.
//
//	@Summary		Import notes from an exported file
//	@Tags			transfer
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Export file (.stickies, .json, .md, .txt)"
//	@Param			policy	query		string	false	"Merge policy"	Enums(skip, add, replace, cancel)
//	@Param			dry_run	query		bool	false	"Only compute the plan"
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	policy := notestore.SkipDuplicates
	if p := q.Get("policy"); p != "" {
		var err error
		if policy, err = notestore.ParsePolicy(p); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}
	dryRun := q.Get("dry_run") == "1" || q.Get("dry_run") == "true"

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name := filepath.Base(filepath.Clean(header.Filename))
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	plan, err := h.svc.Import(r.Context(), name, data, policy, dryRun)
	if err != nil {
		writeError(w, "import", err)
		return
	}
	imported := len(plan.Notes)
	if plan.Policy == notestore.Cancel {
		imported = 0
	}
	writeJSON(w, http.StatusOK, ImportResponse{
		Policy:     plan.Policy.String(),
		Imported:   imported,
		Duplicates: plan.Duplicates,
		Removed:    plan.Removed,
		Summary:    plan.Summary(),
		DryRun:     dryRun,
	})
}

// Export handles GET /api/export.
//
//	@Summary		Download all notes as a pretty-printed JSON file
//	@Tags			transfer
//	@Produce		application/json
//	@Success		200
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, uuid.Nil)
}

// ExportNote handles GET /api/notes/{id}/export.
func (h *Handler) ExportNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	h.download(w, r, id)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	data, name, err := h.svc.Export(r.Context(), id)
	if err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
