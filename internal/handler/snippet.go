// Package handler contains the HTTP handlers for the REST service. Handlers
// translate between HTTP and the backend layer; they never touch SQL.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ameline/snipvault/internal/backend"
	"github.com/ameline/snipvault/internal/model"
	"github.com/ameline/snipvault/internal/persist"
)

// Notifier receives persistence notifications after mutating operations.
// *persist.Saver satisfies it; tests pass nil.
type Notifier interface {
	Notify(action string)
}

// SnippetHandler serves /api/snippets. It resolves the active backend through
// the registry on every request, so a runtime backend switch takes effect
// immediately.
type SnippetHandler struct {
	backends *backend.Registry
	saver    Notifier
	logger   *slog.Logger
}

func NewSnippetHandler(backends *backend.Registry, saver Notifier, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{backends: backends, saver: saver, logger: logger}
}

// notify schedules a durable save, but only while the embedded engine is the
// active backend — a mutation routed to the remote service leaves the local
// image untouched, so there is nothing to flush.
func (h *SnippetHandler) notify(action string) {
	if h.saver == nil || h.backends.Active().Kind() != backend.KindLocal {
		return
	}
	h.saver.Notify(action)
}

// HandleList returns all snippets, most recently updated first.
//
// GET /api/snippets
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.backends.Active().GetAllSnippets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if snippets == nil {
		snippets = []model.Snippet{}
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleGetByID returns one snippet.
//
// GET /api/snippets/{id}
func (h *SnippetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.backends.Active().GetSnippet(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleCreate stores a snippet. A body without an id is a plain create; a
// body carrying an id is an id-keyed upsert — that is what lets a migration
// or an import replay the same rows and converge.
//
// POST /api/snippets
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var snippet model.Snippet
	if err := json.NewDecoder(r.Body).Decode(&snippet); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	var err error
	if snippet.ID != "" {
		err = h.backends.Active().PutSnippet(r.Context(), &snippet)
	} else {
		err = h.backends.Active().CreateSnippet(r.Context(), &snippet)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.notify(persist.ActionSnippetCreate)
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleUpdate replaces a snippet's mutable fields.
//
// PUT /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var snippet model.Snippet
	if err := json.NewDecoder(r.Body).Decode(&snippet); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}
	snippet.ID = r.PathValue("id")

	if err := h.backends.Active().UpdateSnippet(r.Context(), &snippet); err != nil {
		writeError(w, err)
		return
	}

	h.notify(persist.ActionSnippetUpdate)
	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete removes a snippet.
//
// DELETE /api/snippets/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.backends.Active().DeleteSnippet(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	h.notify(persist.ActionSnippetDelete)
	w.WriteHeader(http.StatusNoContent)
}
