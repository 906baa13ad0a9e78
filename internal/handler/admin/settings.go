package admin

import (
	"context"
	"net/http"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/handler"
)

// Settings reads and writes the event configuration.
type Settings interface {
	Get(ctx context.Context) (*domain.AppConfig, error)
	Update(ctx context.Context, in domain.AppConfig) (*domain.AppConfig, error)
}

// SettingsAdminHandler manages the event configuration.
type SettingsAdminHandler struct {
	settings Settings
}

// NewSettingsAdminHandler creates a new SettingsAdminHandler.
func NewSettingsAdminHandler(settings Settings) *SettingsAdminHandler {
	return &SettingsAdminHandler{settings: settings}
}

// Get handles GET /admin/settings.
func (h *SettingsAdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Get(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, cfg)
}

// Update handles PUT /admin/settings.
func (h *SettingsAdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input domain.AppConfig
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	cfg, err := h.settings.Update(r.Context(), input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, cfg)
}
