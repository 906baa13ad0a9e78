package handler

import (
	"context"
	"net/http"

	"github.com/retroarcade/hiscore/internal/domain"
)

// GameLister lists the game catalog.
type GameLister interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Game, error)
}

// GameHandler serves the public game catalog.
type GameHandler struct {
	games GameLister
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games GameLister) *GameHandler {
	return &GameHandler{games: games}
}

// List handles GET /games. Only games accepting submissions are returned.
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.List(r.Context(), true)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, games)
}
