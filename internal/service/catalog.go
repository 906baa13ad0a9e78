package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/repository"
)

// CatalogService manages the game catalog.
type CatalogService struct {
	db     repository.DBTX
	games  repository.GameRepository
	logger *slog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(db repository.DBTX, games repository.GameRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{db: db, games: games, logger: logger}
}

// GameInput holds create and update fields. Nil fields are left unchanged on update.
type GameInput struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

// List returns games ordered by name.
func (s *CatalogService) List(ctx context.Context, activeOnly bool) ([]domain.Game, error) {
	games, err := s.games.List(ctx, s.db, activeOnly)
	if err != nil {
		return nil, domain.ErrInternal("list games", err)
	}
	return nonNil(games), nil
}

func normalizeGameName(name string) (string, string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", "", domain.ErrValidation("game name is required")
	}
	if len([]rune(name)) > 80 {
		return "", "", domain.ErrValidation("game name must be at most 80 characters")
	}
	s := GameSlug(name)
	if s == "" {
		return "", "", domain.ErrValidation("game name must contain letters or digits")
	}
	return name, s, nil
}

// Create adds a game. New games are active unless stated otherwise.
func (s *CatalogService) Create(ctx context.Context, in GameInput) (*domain.Game, error) {
	if in.Name == nil {
		return nil, domain.ErrValidation("game name is required")
	}
	name, gameSlug, err := normalizeGameName(*in.Name)
	if err != nil {
		return nil, err
	}
	g := &domain.Game{ID: uuid.New(), Name: name, Slug: gameSlug, Active: true}
	if in.Active != nil {
		g.Active = *in.Active
	}
	if err := s.games.Create(ctx, s.db, g); err != nil {
		if appErr := asAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, domain.ErrInternal("create game", err)
	}
	s.logger.Info("game created", "game_id", g.ID, "slug", g.Slug)
	return g, nil
}

// Update renames a game or toggles whether it accepts submissions.
// Renaming regenerates the slug; stored submissions keep the old name and the
// leaderboard shows the new one.
func (s *CatalogService) Update(ctx context.Context, id uuid.UUID, in GameInput) (*domain.Game, error) {
	g, err := s.games.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("find game", err)
	}
	if g == nil {
		return nil, domain.ErrNotFound("game", id.String())
	}
	if in.Name != nil {
		name, gameSlug, err := normalizeGameName(*in.Name)
		if err != nil {
			return nil, err
		}
		g.Name, g.Slug = name, gameSlug
	}
	if in.Active != nil {
		g.Active = *in.Active
	}
	if err := s.games.Update(ctx, s.db, g); err != nil {
		if appErr := asAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, domain.ErrInternal("update game", err)
	}
	return g, nil
}

// Delete removes a game from the catalog. Its submissions remain.
func (s *CatalogService) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.games.Delete(ctx, s.db, id)
	if err != nil {
		return domain.ErrInternal("delete game", err)
	}
	if !ok {
		return domain.ErrNotFound("game", id.String())
	}
	s.logger.Info("game deleted", "game_id", id)
	return nil
}
