package handler

import (
	"log/slog"
	"net/http"

	"github.com/ameline/snipvault/internal/backup"
	"github.com/ameline/snipvault/internal/persist"
	"github.com/ameline/snipvault/internal/schema"
)

// AdminHandler serves the health probe and the maintenance endpoints: wipe,
// stats, export, import.
type AdminHandler struct {
	schema *schema.Manager
	backup *backup.Service
	saver  Notifier
	logger *slog.Logger
}

func NewAdminHandler(sm *schema.Manager, bk *backup.Service, saver Notifier, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{schema: sm, backup: bk, saver: saver, logger: logger}
}

// HandleHealth is the liveness probe the Remote adapter's TestConnection
// hits.
//
// GET /health
func (h *AdminHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleWipe is the emergency reset: drop everything, rebuild the schema and
// the default namespace, persist the fresh image.
//
// POST /api/admin/wipe
func (h *AdminHandler) HandleWipe(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("database wipe requested")

	if err := h.schema.Repair(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	if h.saver != nil {
		h.saver.Notify(persist.ActionWipe)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "wiped"})
}

// HandleStats reports dataset counts and storage details.
//
// GET /api/admin/stats
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.backup.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleExport streams the full dataset as a JSON archive.
//
// GET /api/admin/export
func (h *AdminHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="snipvault-export.json"`)
	if err := h.backup.ExportJSON(r.Context(), w); err != nil {
		// Too late for a status change if anything was written; log it.
		h.logger.Error("export failed", slog.String("error", err.Error()))
	}
}

// HandleImport restores a dataset from a JSON archive.
//
// POST /api/admin/import
func (h *AdminHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	n, err := h.backup.ImportJSON(r.Context(), r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	if h.saver != nil {
		h.saver.Notify(persist.ActionImport)
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}
