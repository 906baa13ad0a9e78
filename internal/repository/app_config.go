package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/retroarcade/hiscore/internal/domain"
)

const appConfigID = "event"

type appConfigRepo struct{}

// NewAppConfigRepository returns a pgx-backed AppConfigRepository.
func NewAppConfigRepository() AppConfigRepository {
	return &appConfigRepo{}
}

// Get returns the singleton row, or an empty config when none has been saved.
func (r *appConfigRepo) Get(ctx context.Context, db DBTX) (*domain.AppConfig, error) {
	var c domain.AppConfig
	err := db.QueryRow(ctx, `
		SELECT playlist_url, event_id, event_name, updated_at
		FROM app_config WHERE id = $1`, appConfigID,
	).Scan(&c.PlaylistURL, &c.EventID, &c.EventName, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.AppConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get app config: %w", err)
	}
	return &c, nil
}

func (r *appConfigRepo) Save(ctx context.Context, db DBTX, c *domain.AppConfig) error {
	err := db.QueryRow(ctx, `
		INSERT INTO app_config (id, playlist_url, event_id, event_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
		  playlist_url = EXCLUDED.playlist_url,
		  event_id = EXCLUDED.event_id,
		  event_name = EXCLUDED.event_name,
		  updated_at = now()
		RETURNING updated_at`,
		appConfigID, c.PlaylistURL, c.EventID, c.EventName,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save app config: %w", err)
	}
	return nil
}
