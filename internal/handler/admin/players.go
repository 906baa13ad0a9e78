package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/handler"
	"github.com/retroarcade/hiscore/internal/service"
)

// Players is the player management surface.
type Players interface {
	List(ctx context.Context) ([]domain.Player, error)
	Update(ctx context.Context, id uuid.UUID, in service.PlayerInput) (*domain.Player, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PlayerAdminHandler handles admin player management.
type PlayerAdminHandler struct {
	players Players
}

// NewPlayerAdminHandler creates a new PlayerAdminHandler.
func NewPlayerAdminHandler(players Players) *PlayerAdminHandler {
	return &PlayerAdminHandler{players: players}
}

// List handles GET /admin/players.
func (h *PlayerAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.players.List(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, players)
}

// Update handles PUT /admin/players/{id}.
func (h *PlayerAdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.URLUUID(w, r, "id")
	if !ok {
		return
	}
	var input service.PlayerInput
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	player, err := h.players.Update(r.Context(), id, input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, player)
}

// Delete handles DELETE /admin/players/{id}. The player's submissions stay on the board.
func (h *PlayerAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.URLUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.players.Delete(r.Context(), id); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
