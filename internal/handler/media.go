package handler

import (
	"context"
	"net/http"

	"github.com/retroarcade/hiscore/internal/domain"
)

// SettingsReader exposes the event configuration.
type SettingsReader interface {
	Get(ctx context.Context) (*domain.AppConfig, error)
}

// MediaHandler serves the event playlist and name.
type MediaHandler struct {
	settings SettingsReader
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(settings SettingsReader) *MediaHandler {
	return &MediaHandler{settings: settings}
}

type mediaResponse struct {
	PlaylistURL string `json:"playlist_url"`
	EventID     string `json:"event_id"`
	EventName   string `json:"event_name"`
}

// Get handles GET /media.
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Get(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, mediaResponse{
		PlaylistURL: cfg.PlaylistURL,
		EventID:     cfg.EventID,
		EventName:   cfg.EventName,
	})
}
