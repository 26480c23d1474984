package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/kids-bank/internal/api/middleware"
	"github.com/dvloznov/kids-bank/internal/cloudsync"
	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/pubsub"
	"github.com/dvloznov/kids-bank/internal/state"
	"github.com/dvloznov/kids-bank/internal/trigger"
)

// SyncService provides an interface for the sync orchestrator operations the
// API exposes.
type SyncService interface {
	Status() pubsub.SyncStatus
	Running() bool
	SetEnabled(ctx context.Context, enabled bool) error
	SetOnline(ctx context.Context, online bool) cloudsync.Outcome
	GenerateSyncKeys(ctx context.Context) (string, error)
	PairingPayload() (domain.PairingPayload, error)
	ImportPairing(ctx context.Context, p domain.PairingPayload) (bool, error)
}

// Triggerer requests a sync run.
type Triggerer interface {
	Trigger(ctx context.Context, reason trigger.Reason) error
}

// SyncHandler handles cloud sync endpoints.
type SyncHandler struct {
	sync    SyncService
	trigger Triggerer
	runs    trigger.RunStore
	state   *state.State
	log     zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(sync SyncService, trig Triggerer, runs trigger.RunStore, st *state.State, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		sync:    sync,
		trigger: trig,
		runs:    runs,
		state:   st,
		log:     log,
	}
}

// GetStatus handles GET /api/sync/status
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	desc := h.state.Descriptor()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     h.sync.Status(),
		"running":    h.sync.Running(),
		"enabled":    desc.Enabled,
		"configured": desc.Configured(),
		"guid":       desc.GUID,
		"mode":       h.state.CloudConfig().Mode(),
	})
}

// ListRuns handles GET /api/sync/runs
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := trigger.RunFilter{
		Reason: trigger.Reason(query.Get("reason")),
		Status: trigger.RunStatus(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	runs, err := h.runs.ListRuns(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sync runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list sync runs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// TriggerSync handles POST /api/sync
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.state.Descriptor().Configured() {
		middleware.WriteError(w, http.StatusConflict, "Cloud sync is not configured")
		return
	}
	if err := h.trigger.Trigger(r.Context(), trigger.ReasonManual); err != nil {
		h.log.Error().Err(err).Msg("Failed to trigger sync")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to trigger sync")
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// SetEnabled handles PUT /api/sync/enabled
func (h *SyncHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.sync.SetEnabled(r.Context(), req.Enabled); err != nil {
		writeStateError(w, h.log, err, "Failed to update sync setting")
		return
	}
	if req.Enabled {
		if err := h.trigger.Trigger(r.Context(), trigger.ReasonManual); err != nil {
			h.log.Warn().Err(err).Msg("Failed to trigger sync after enabling")
		}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// GenerateKeys handles POST /api/sync/keys
func (h *SyncHandler) GenerateKeys(w http.ResponseWriter, r *http.Request) {
	guid, err := h.sync.GenerateSyncKeys(r.Context())
	if err != nil {
		writeStateError(w, h.log, err, "Failed to generate sync keys")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"guid": guid})
}

// GetPairing handles GET /api/sync/pairing. The payload carries the shared
// key, so it is only served to authenticated callers.
func (h *SyncHandler) GetPairing(w http.ResponseWriter, r *http.Request) {
	p, err := h.sync.PairingPayload()
	if err != nil {
		writeStateError(w, h.log, err, "Failed to build pairing payload")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}

// ImportPairing handles POST /api/sync/pairing
func (h *SyncHandler) ImportPairing(w http.ResponseWriter, r *http.Request) {
	var p domain.PairingPayload
	if !decodeBody(w, r, &p) {
		return
	}

	found, err := h.sync.ImportPairing(r.Context(), p)
	if err != nil {
		writeStateError(w, h.log, err, "Failed to import pairing")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"dataFound": found})
}

// GetCloudConfig handles GET /api/sync/config
func (h *SyncHandler) GetCloudConfig(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cloud": h.state.CloudConfig(),
		"toast": h.state.ToastConfig(),
	})
}

// SetCloudConfig handles PUT /api/sync/config. Either section may be omitted.
func (h *SyncHandler) SetCloudConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cloud *domain.CloudConfig `json:"cloud"`
		Toast *state.ToastConfig  `json:"toast"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	if req.Cloud != nil {
		if err := h.state.SetCloudConfig(ctx, *req.Cloud); err != nil {
			writeStateError(w, h.log, err, "Failed to save cloud config")
			return
		}
	}
	if req.Toast != nil {
		if err := h.state.SetToastConfig(ctx, *req.Toast); err != nil {
			writeStateError(w, h.log, err, "Failed to save toast config")
			return
		}
	}
	h.GetCloudConfig(w, r)
}

// DeviceEvent handles POST /api/device/{event}: the client reports
// connectivity, focus and visibility changes.
func (h *SyncHandler) DeviceEvent(w http.ResponseWriter, r *http.Request, event string) {
	ctx := r.Context()

	if event == "offline" {
		h.sync.SetOnline(ctx, false)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	reason, ok := trigger.ParseReason(event)
	if !ok || reason == trigger.ReasonSave {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown device event")
		return
	}
	if err := h.trigger.Trigger(ctx, reason); err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("Failed to trigger sync")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to trigger sync")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
