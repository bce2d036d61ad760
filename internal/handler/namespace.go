package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ameline/snipvault/internal/backend"
	"github.com/ameline/snipvault/internal/model"
	"github.com/ameline/snipvault/internal/persist"
	"github.com/ameline/snipvault/internal/repository"
)

// NamespaceHandler serves /api/namespaces. Rename goes straight to the local
// repository — the Backend surface carries only the operations the remote
// service needs.
type NamespaceHandler struct {
	backends   *backend.Registry
	namespaces repository.NamespaceRepository
	saver      Notifier
	logger     *slog.Logger
}

func NewNamespaceHandler(backends *backend.Registry, namespaces repository.NamespaceRepository, saver Notifier, logger *slog.Logger) *NamespaceHandler {
	return &NamespaceHandler{backends: backends, namespaces: namespaces, saver: saver, logger: logger}
}

// notify schedules a durable save only while the embedded engine is the
// active backend, mirroring SnippetHandler.notify.
func (h *NamespaceHandler) notify(action string) {
	if h.saver == nil || h.backends.Active().Kind() != backend.KindLocal {
		return
	}
	h.saver.Notify(action)
}

// HandleList returns all namespaces, default first.
//
// GET /api/namespaces
func (h *NamespaceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	namespaces, err := h.backends.Active().GetAllNamespaces(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if namespaces == nil {
		namespaces = []model.Namespace{}
	}
	writeJSON(w, http.StatusOK, namespaces)
}

// HandleCreate stores a namespace; like snippets, a body carrying an id is
// an upsert.
//
// POST /api/namespaces
func (h *NamespaceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var ns model.Namespace
	if err := json.NewDecoder(r.Body).Decode(&ns); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	var err error
	if ns.ID != "" {
		err = h.backends.Active().PutNamespace(r.Context(), &ns)
	} else {
		err = h.backends.Active().CreateNamespace(r.Context(), &ns)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.notify(persist.ActionNamespaceCreate)
	writeJSON(w, http.StatusCreated, ns)
}

// HandleUpdate renames a namespace.
//
// PUT /api/namespaces/{id}
func (h *NamespaceHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var ns model.Namespace
	if err := json.NewDecoder(r.Body).Decode(&ns); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}
	ns.ID = r.PathValue("id")

	if err := h.namespaces.Update(r.Context(), &ns); err != nil {
		writeError(w, err)
		return
	}

	h.notify(persist.ActionNamespaceUpdate)
	writeJSON(w, http.StatusOK, ns)
}

// HandleDelete removes a namespace, reassigning its snippets to the default
// namespace first. Deleting the default namespace itself is refused.
//
// DELETE /api/namespaces/{id}
func (h *NamespaceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.backends.Active().DeleteNamespace(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	h.notify(persist.ActionNamespaceDelete)
	w.WriteHeader(http.StatusNoContent)
}
