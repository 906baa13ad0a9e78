package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/handler"
)

// Offers is the offer management surface.
type Offers interface {
	ListAll(ctx context.Context) ([]domain.Offer, error)
	Create(ctx context.Context, o domain.Offer) (*domain.Offer, error)
	Update(ctx context.Context, id uuid.UUID, o domain.Offer) (*domain.Offer, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OfferAdminHandler handles promotional offers.
type OfferAdminHandler struct {
	offers Offers
}

// NewOfferAdminHandler creates a new OfferAdminHandler.
func NewOfferAdminHandler(offers Offers) *OfferAdminHandler {
	return &OfferAdminHandler{offers: offers}
}

// List handles GET /admin/offers.
func (h *OfferAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	offers, err := h.offers.ListAll(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, offers)
}

// Create handles POST /admin/offers.
func (h *OfferAdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.Offer
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	offer, err := h.offers.Create(r.Context(), input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, offer)
}

// Update handles PUT /admin/offers/{id}. The body replaces the whole offer.
func (h *OfferAdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.URLUUID(w, r, "id")
	if !ok {
		return
	}
	var input domain.Offer
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	offer, err := h.offers.Update(r.Context(), id, input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, offer)
}

// Delete handles DELETE /admin/offers/{id}.
func (h *OfferAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.URLUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.offers.Delete(r.Context(), id); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
