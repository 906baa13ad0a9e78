package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/retroarcade/hiscore/internal/domain"
)

// PgAdminRepository implements AdminRepository using pgx.
type PgAdminRepository struct{}

// NewPgAdminRepository creates a new PgAdminRepository.
func NewPgAdminRepository() *PgAdminRepository {
	return &PgAdminRepository{}
}

// FindByEmail returns an admin by email, or nil if not found.
func (r *PgAdminRepository) FindByEmail(ctx context.Context, db DBTX, email string) (*domain.Admin, error) {
	a := &domain.Admin{}
	err := db.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, active, created_at, updated_at
		FROM admins WHERE lower(email) = lower($1)`, email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return a, nil
}

// IsMember reports whether id is an active admin.
func (r *PgAdminRepository) IsMember(ctx context.Context, db DBTX, id uuid.UUID) (bool, error) {
	var ok bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE id = $1 AND active)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check admin membership: %w", err)
	}
	return ok, nil
}

// Upsert creates the admin or refreshes its password hash and display name.
func (r *PgAdminRepository) Upsert(ctx context.Context, db DBTX, a *domain.Admin) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := db.QueryRow(ctx, `
		INSERT INTO admins (id, email, password_hash, display_name, active)
		VALUES ($1, lower($2), $3, $4, true)
		ON CONFLICT (email) DO UPDATE SET
		  password_hash = EXCLUDED.password_hash,
		  display_name = EXCLUDED.display_name,
		  active = true,
		  updated_at = now()
		RETURNING id, active, created_at, updated_at`,
		a.ID, a.Email, a.PasswordHash, a.DisplayName,
	).Scan(&a.ID, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	return nil
}
