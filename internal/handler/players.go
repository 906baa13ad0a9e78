package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/service"
)

// PlayerDirectory is the player operations exposed publicly.
type PlayerDirectory interface {
	Register(ctx context.Context, in service.PlayerInput) (*domain.Player, error)
	List(ctx context.Context) ([]domain.Player, error)
	Submissions(ctx context.Context, playerID uuid.UUID) ([]domain.ScoreSubmission, error)
}

// PlayerHandler handles player registration and lookup.
type PlayerHandler struct {
	players PlayerDirectory
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(players PlayerDirectory) *PlayerHandler {
	return &PlayerHandler{players: players}
}

// Register handles POST /players.
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.PlayerInput
	if err := DecodeJSON(r, &input); err != nil {
		badBody(w)
		return
	}

	player, err := h.players.Register(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, player)
}

// List handles GET /players.
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.players.List(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, players)
}

// Submissions handles GET /players/{id}/submissions.
func (h *PlayerHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	playerID, ok := URLUUID(w, r, "id")
	if !ok {
		return
	}

	subs, err := h.players.Submissions(r.Context(), playerID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, subs)
}

// URLUUID parses a chi URL parameter as a UUID, writing a 400 when it is malformed.
func URLUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid "+param))
		return uuid.Nil, false
	}
	return id, true
}
