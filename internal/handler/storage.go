package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ameline/snipvault/internal/backend"
	"github.com/ameline/snipvault/internal/migrate"
)

// StorageHandler exposes the storage configuration and the migration service.
type StorageHandler struct {
	backends *backend.Registry
	migrator *migrate.Migrator
	logger   *slog.Logger
}

func NewStorageHandler(backends *backend.Registry, migrator *migrate.Migrator, logger *slog.Logger) *StorageHandler {
	return &StorageHandler{backends: backends, migrator: migrator, logger: logger}
}

// storageState is the response shape for the configuration endpoint.
type storageState struct {
	Backend   string `json:"backend"`
	RemoteURL string `json:"remoteUrl,omitempty"`
	Locked    bool   `json:"locked"`
}

// migrateRequest is the body for both migration endpoints.
type migrateRequest struct {
	URL string `json:"url"`
}

// HandleGet reports the active backend and whether the environment override
// has locked it.
//
// GET /api/admin/storage
func (h *StorageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sel := h.backends.Selection()
	writeJSON(w, http.StatusOK, storageState{
		Backend:   sel.Backend,
		RemoteURL: sel.RemoteURL,
		Locked:    h.backends.Locked(),
	})
}

// HandleMigrateToRemote pushes the local dataset to the given service and
// switches over to it.
//
// POST /api/admin/migrate/to-remote
func (h *StorageHandler) HandleMigrateToRemote(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	n, err := h.migrator.LocalToRemote(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"migrated": n})
}

// HandleMigrateToLocal pulls the dataset from the given service into the
// embedded engine and switches back to it.
//
// POST /api/admin/migrate/to-local
func (h *StorageHandler) HandleMigrateToLocal(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	n, err := h.migrator.RemoteToLocal(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"migrated": n})
}
