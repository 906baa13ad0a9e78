package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/repository"
)

// OfferService manages promotional offers.
type OfferService struct {
	db     repository.DBTX
	offers repository.OfferRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewOfferService creates a new OfferService.
func NewOfferService(db repository.DBTX, offers repository.OfferRepository, logger *slog.Logger) *OfferService {
	return &OfferService{db: db, offers: offers, logger: logger, now: time.Now}
}

// ListActive returns active offers. With currentOnly, only offers whose
// schedule covers the present moment are returned.
func (s *OfferService) ListActive(ctx context.Context, currentOnly bool) ([]domain.Offer, error) {
	offers, err := s.offers.List(ctx, s.db, true)
	if err != nil {
		return nil, domain.ErrInternal("list offers", err)
	}
	if !currentOnly {
		return nonNil(offers), nil
	}
	now := s.now()
	current := make([]domain.Offer, 0, len(offers))
	for i := range offers {
		if offers[i].ActiveAt(now) {
			current = append(current, offers[i])
		}
	}
	return current, nil
}

// ListAll returns every offer for the admin panel.
func (s *OfferService) ListAll(ctx context.Context) ([]domain.Offer, error) {
	offers, err := s.offers.List(ctx, s.db, false)
	if err != nil {
		return nil, domain.ErrInternal("list offers", err)
	}
	return nonNil(offers), nil
}

// Create validates and stores a new offer.
func (s *OfferService) Create(ctx context.Context, o domain.Offer) (*domain.Offer, error) {
	if err := o.Validate(); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	o.ID = uuid.New()
	if err := s.offers.Create(ctx, s.db, &o); err != nil {
		return nil, domain.ErrInternal("create offer", err)
	}
	s.logger.Info("offer created", "offer_id", o.ID, "kind", o.Kind)
	return &o, nil
}

// Update replaces an offer's fields.
func (s *OfferService) Update(ctx context.Context, id uuid.UUID, o domain.Offer) (*domain.Offer, error) {
	if err := o.Validate(); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	o.ID = id
	if err := s.offers.Update(ctx, s.db, &o); err != nil {
		if appErr := asAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, domain.ErrInternal("update offer", err)
	}
	return &o, nil
}

// Delete removes an offer.
func (s *OfferService) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.offers.Delete(ctx, s.db, id)
	if err != nil {
		return domain.ErrInternal("delete offer", err)
	}
	if !ok {
		return domain.ErrNotFound("offer", id.String())
	}
	return nil
}
