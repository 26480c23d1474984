package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/kids-bank/internal/api/middleware"
	"github.com/dvloznov/kids-bank/internal/domain"
)

// Suggester suggests a category slug for a description.
type Suggester interface {
	Suggest(ctx context.Context, description string, earn bool) (string, error)
}

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	suggester Suggester
	log       zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler. suggester may be
// nil when no model is configured.
func NewCategoriesHandler(suggester Suggester, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{suggester: suggester, log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"earn":  domain.EarnCategories,
		"spend": domain.SpendCategories,
	})
}

// Suggest handles POST /api/categories/suggest
func (h *CategoriesHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Category suggestions are not configured")
		return
	}

	var req struct {
		Description string `json:"description"`
		Earn        bool   `json:"earn"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	slug, err := h.suggester.Suggest(r.Context(), req.Description, req.Earn)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to suggest category")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to suggest category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"category": slug})
}
