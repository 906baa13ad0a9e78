package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/repository"
)

// PlayerService registers players and serves player listings.
type PlayerService struct {
	db      repository.DBTX
	tx      repository.Transactor
	players repository.PlayerRepository
	subs    repository.SubmissionRepository
	outbox  repository.OutboxRepository
	logger  *slog.Logger
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(
	db repository.DBTX,
	tx repository.Transactor,
	players repository.PlayerRepository,
	subs repository.SubmissionRepository,
	outbox repository.OutboxRepository,
	logger *slog.Logger,
) *PlayerService {
	return &PlayerService{db: db, tx: tx, players: players, subs: subs, outbox: outbox, logger: logger}
}

// PlayerInput holds the registration or edit fields.
type PlayerInput struct {
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	GroupSize *int   `json:"group_size"`
}

func (in PlayerInput) normalize() (name, handle string, groupSize int, err error) {
	name, err = domain.NormalizePlayerName(in.Name)
	if err != nil {
		return "", "", 0, domain.ErrValidation(err.Error())
	}
	handle, err = domain.NormalizeHandle(in.Handle)
	if err != nil {
		return "", "", 0, domain.ErrValidation(err.Error())
	}
	groupSize = 1
	if in.GroupSize != nil {
		groupSize = *in.GroupSize
	}
	if err := domain.ValidateGroupSize(groupSize); err != nil {
		return "", "", 0, domain.ErrValidation(err.Error())
	}
	return name, handle, groupSize, nil
}

// Register creates a player. Names are unique case-insensitively.
func (s *PlayerService) Register(ctx context.Context, in PlayerInput) (*domain.Player, error) {
	name, handle, groupSize, err := in.normalize()
	if err != nil {
		return nil, err
	}

	existing, err := s.players.FindByName(ctx, s.db, name)
	if err != nil {
		return nil, domain.ErrInternal("find player", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict("a player with that name already exists")
	}

	p := &domain.Player{ID: uuid.New(), Name: name, Handle: handle, GroupSize: groupSize}
	err = s.tx.InTx(ctx, func(tx repository.DBTX) error {
		if err := s.players.Create(ctx, tx, p); err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, domain.NewPlayerRegisteredEvent(p))
	})
	if err != nil {
		if appErr := asAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, domain.ErrInternal("create player", err)
	}

	s.logger.Info("player registered", "player_id", p.ID, "group_size", p.GroupSize)
	return p, nil
}

// List returns every player ordered by name.
func (s *PlayerService) List(ctx context.Context) ([]domain.Player, error) {
	players, err := s.players.List(ctx, s.db)
	if err != nil {
		return nil, domain.ErrInternal("list players", err)
	}
	return nonNil(players), nil
}

// Submissions returns one player's submissions, newest first.
func (s *PlayerService) Submissions(ctx context.Context, playerID uuid.UUID) ([]domain.ScoreSubmission, error) {
	p, err := s.players.FindByID(ctx, s.db, playerID)
	if err != nil {
		return nil, domain.ErrInternal("find player", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("player", playerID.String())
	}
	subs, err := s.subs.List(ctx, s.db, domain.SubmissionFilter{PlayerID: &playerID})
	if err != nil {
		return nil, domain.ErrInternal("list submissions", err)
	}
	return nonNil(subs), nil
}

// Update edits a player. Existing submissions keep the name they were filed under.
func (s *PlayerService) Update(ctx context.Context, id uuid.UUID, in PlayerInput) (*domain.Player, error) {
	name, handle, groupSize, err := in.normalize()
	if err != nil {
		return nil, err
	}

	clash, err := s.players.FindByName(ctx, s.db, name)
	if err != nil {
		return nil, domain.ErrInternal("find player", err)
	}
	if clash != nil && clash.ID != id {
		return nil, domain.ErrConflict("a player with that name already exists")
	}

	p := &domain.Player{ID: id, Name: name, Handle: handle, GroupSize: groupSize}
	if err := s.players.Update(ctx, s.db, p); err != nil {
		if appErr := asAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, domain.ErrInternal("update player", err)
	}
	return p, nil
}

// Delete removes a player. Their submissions stay on the board under the stored name.
func (s *PlayerService) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.players.Delete(ctx, s.db, id)
	if err != nil {
		return domain.ErrInternal("delete player", err)
	}
	if !ok {
		return domain.ErrNotFound("player", id.String())
	}
	s.logger.Info("player deleted", "player_id", id)
	return nil
}
