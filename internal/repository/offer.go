package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/retroarcade/hiscore/internal/domain"
)

const offerColumns = `id, title, description, kind, starts_at, ends_at, weekdays,
	daily_start, daily_end, reward_type, reward_value, active, created_at, updated_at`

type offerRepo struct{}

// NewOfferRepository returns a pgx-backed OfferRepository.
func NewOfferRepository() OfferRepository {
	return &offerRepo{}
}

func (r *offerRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Offer, error) {
	row := db.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)
	return scanOffer(row)
}

func (r *offerRepo) List(ctx context.Context, db DBTX, activeOnly bool) ([]domain.Offer, error) {
	rows, err := db.Query(ctx, `
		SELECT `+offerColumns+` FROM offers
		WHERE ($1 = false OR active)
		ORDER BY created_at DESC`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var offers []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

func (r *offerRepo) Create(ctx context.Context, db DBTX, o *domain.Offer) error {
	err := db.QueryRow(ctx, `
		INSERT INTO offers (id, title, description, kind, starts_at, ends_at, weekdays,
		                    daily_start, daily_end, reward_type, reward_value, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		o.ID, o.Title, o.Description, string(o.Kind), o.StartsAt, o.EndsAt, weekdaysArg(o.Weekdays),
		o.DailyStart, o.DailyEnd, o.RewardType, o.RewardValue, o.Active,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

func (r *offerRepo) Update(ctx context.Context, db DBTX, o *domain.Offer) error {
	err := db.QueryRow(ctx, `
		UPDATE offers SET title = $2, description = $3, kind = $4, starts_at = $5, ends_at = $6,
		  weekdays = $7, daily_start = $8, daily_end = $9, reward_type = $10, reward_value = $11,
		  active = $12, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		o.ID, o.Title, o.Description, string(o.Kind), o.StartsAt, o.EndsAt, weekdaysArg(o.Weekdays),
		o.DailyStart, o.DailyEnd, o.RewardType, o.RewardValue, o.Active,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound("offer", o.ID.String())
	}
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	return nil
}

func (r *offerRepo) Delete(ctx context.Context, db DBTX, id uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `DELETE FROM offers WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete offer: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// weekdaysArg keeps the NOT NULL column satisfied for one_time offers.
func weekdaysArg(days []int) []int {
	if days == nil {
		return []int{}
	}
	return days
}

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var o domain.Offer
	var kind string
	err := row.Scan(&o.ID, &o.Title, &o.Description, &kind, &o.StartsAt, &o.EndsAt, &o.Weekdays,
		&o.DailyStart, &o.DailyEnd, &o.RewardType, &o.RewardValue, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan offer: %w", err)
	}
	o.Kind = domain.OfferKind(kind)
	return &o, nil
}
