package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/retroarcade/hiscore/internal/domain"
)

// ActiveOfferLister lists offers shown to players.
type ActiveOfferLister interface {
	ListActive(ctx context.Context, currentOnly bool) ([]domain.Offer, error)
}

// OfferHandler serves the public offers list.
type OfferHandler struct {
	offers ActiveOfferLister
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(offers ActiveOfferLister) *OfferHandler {
	return &OfferHandler{offers: offers}
}

// List handles GET /offers. With ?now=true only offers running right now are returned.
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	currentOnly := false
	if raw := r.URL.Query().Get("now"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			RespondError(w, domain.ErrValidation("now must be true or false"))
			return
		}
		currentOnly = v
	}

	offers, err := h.offers.ListActive(r.Context(), currentOnly)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, offers)
}
