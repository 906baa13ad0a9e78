package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/handler"
	"github.com/retroarcade/hiscore/internal/service"
)

// Catalog is the game management surface.
type Catalog interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Game, error)
	Create(ctx context.Context, in service.GameInput) (*domain.Game, error)
	Update(ctx context.Context, id uuid.UUID, in service.GameInput) (*domain.Game, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GameAdminHandler handles game catalog management.
type GameAdminHandler struct {
	games Catalog
}

// NewGameAdminHandler creates a new GameAdminHandler.
func NewGameAdminHandler(games Catalog) *GameAdminHandler {
	return &GameAdminHandler{games: games}
}

// List handles GET /admin/games, including inactive games.
func (h *GameAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.List(r.Context(), false)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, games)
}

// Create handles POST /admin/games.
func (h *GameAdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.GameInput
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	game, err := h.games.Create(r.Context(), input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, game)
}

// Update handles PATCH /admin/games/{id}: rename and/or toggle active.
func (h *GameAdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.URLUUID(w, r, "id")
	if !ok {
		return
	}
	var input service.GameInput
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	game, err := h.games.Update(r.Context(), id, input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, game)
}

// Delete handles DELETE /admin/games/{id}.
func (h *GameAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.URLUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.games.Delete(r.Context(), id); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
