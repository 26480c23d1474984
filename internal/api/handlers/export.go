package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/kids-bank/internal/api/middleware"
	"github.com/dvloznov/kids-bank/internal/export"
	"github.com/dvloznov/kids-bank/internal/state"
)

// ExportHandler handles backup and export endpoints.
type ExportHandler struct {
	state *state.State
	now   func() time.Time
	log   zerolog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(st *state.State, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{state: st, now: time.Now, log: log}
}

func (h *ExportHandler) attachment(w http.ResponseWriter, ext string) {
	name := fmt.Sprintf("kids-bank-%s.%s", h.now().Format("2006-01-02"), ext)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

// ExportJSON handles GET /api/export/json
func (h *ExportHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.attachment(w, "json")
	if err := export.WriteBackup(w, h.state.Snapshot()); err != nil {
		h.log.Error().Err(err).Msg("Failed to write backup")
	}
}

// ExportCSV handles GET /api/export/csv
func (h *ExportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	h.attachment(w, "csv")
	if err := export.WriteCSV(w, h.state.Accounts()); err != nil {
		h.log.Error().Err(err).Msg("Failed to write CSV export")
	}
}

// Import handles POST /api/import with a JSON backup as the body.
func (h *ExportHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	backup, err := export.ParseBackup(data)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid backup file")
		return
	}

	if err := h.state.Import(r.Context(), backup.Accounts, backup.DeletedAccountIDs); err != nil {
		writeStateError(w, h.log, err, "Failed to import backup")
		return
	}

	h.log.Info().Int("accounts", len(backup.Accounts)).Msg("Backup imported")
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"accounts": len(backup.Accounts)})
}
