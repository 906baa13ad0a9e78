package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/retroarcade/hiscore/internal/domain"
)

const gameColumns = `id, name, slug, active, created_at, updated_at`

type gameRepo struct{}

// NewGameRepository returns a pgx-backed GameRepository.
func NewGameRepository() GameRepository {
	return &gameRepo{}
}

func (r *gameRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Game, error) {
	row := db.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	return scanGame(row)
}

func (r *gameRepo) FindByNameOrSlug(ctx context.Context, db DBTX, name, slug string) (*domain.Game, error) {
	row := db.QueryRow(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE lower(name) = lower($1) OR slug = $2
		ORDER BY (lower(name) = lower($1)) DESC
		LIMIT 1`, name, slug)
	return scanGame(row)
}

func (r *gameRepo) List(ctx context.Context, db DBTX, activeOnly bool) ([]domain.Game, error) {
	rows, err := db.Query(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE ($1 = false OR active)
		ORDER BY lower(name) ASC`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func (r *gameRepo) Create(ctx context.Context, db DBTX, g *domain.Game) error {
	err := db.QueryRow(ctx, `
		INSERT INTO games (id, name, slug, active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		g.ID, g.Name, g.Slug, g.Active,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict("a game with that name already exists")
		}
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (r *gameRepo) Update(ctx context.Context, db DBTX, g *domain.Game) error {
	err := db.QueryRow(ctx, `
		UPDATE games SET name = $2, slug = $3, active = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		g.ID, g.Name, g.Slug, g.Active,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound("game", g.ID.String())
	}
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict("a game with that name already exists")
		}
		return fmt.Errorf("update game: %w", err)
	}
	return nil
}

func (r *gameRepo) Delete(ctx context.Context, db DBTX, id uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete game: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanGame(row pgx.Row) (*domain.Game, error) {
	var g domain.Game
	err := row.Scan(&g.ID, &g.Name, &g.Slug, &g.Active, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan game: %w", err)
	}
	return &g, nil
}
