package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/repository"
)

// ModerationService lets admins review and correct submissions.
type ModerationService struct {
	db     repository.DBTX
	tx     repository.Transactor
	subs   repository.SubmissionRepository
	outbox repository.OutboxRepository
	logger *slog.Logger
}

// NewModerationService creates a new ModerationService.
func NewModerationService(
	db repository.DBTX,
	tx repository.Transactor,
	subs repository.SubmissionRepository,
	outbox repository.OutboxRepository,
	logger *slog.Logger,
) *ModerationService {
	return &ModerationService{db: db, tx: tx, subs: subs, outbox: outbox, logger: logger}
}

// List returns submissions matching filter, newest first.
func (s *ModerationService) List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.ScoreSubmission, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrValidation("unknown status " + string(filter.Status))
	}
	subs, err := s.subs.List(ctx, s.db, filter)
	if err != nil {
		return nil, domain.ErrInternal("list submissions", err)
	}
	return nonNil(subs), nil
}

// SetStatus approves, rejects or re-opens a submission.
func (s *ModerationService) SetStatus(ctx context.Context, adminID string, id uuid.UUID, status domain.SubmissionStatus) (*domain.ScoreSubmission, error) {
	if !status.Valid() {
		return nil, domain.ErrValidation("status must be pending, approved or rejected")
	}
	sub, err := s.mutate(ctx, id, domain.EventSubmissionStatusChanged, func(tx repository.DBTX) (*domain.ScoreSubmission, error) {
		return s.subs.UpdateStatus(ctx, tx, id, status)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("submission status changed", "submission_id", id, "status", status, "admin_id", adminID)
	return sub, nil
}

// EditScore corrects the entered score.
func (s *ModerationService) EditScore(ctx context.Context, adminID string, id uuid.UUID, rawScore string) (*domain.ScoreSubmission, error) {
	score, err := domain.ParseScore(rawScore)
	if err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	sub, err := s.mutate(ctx, id, domain.EventSubmissionScoreEdited, func(tx repository.DBTX) (*domain.ScoreSubmission, error) {
		return s.subs.UpdateScore(ctx, tx, id, score)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("submission score edited", "submission_id", id, "score", score, "admin_id", adminID)
	return sub, nil
}

// Delete removes a submission. This frees one slot of the player's cap for that game.
func (s *ModerationService) Delete(ctx context.Context, adminID string, id uuid.UUID) error {
	var found bool
	err := s.tx.InTx(ctx, func(tx repository.DBTX) error {
		ok, err := s.subs.Delete(ctx, tx, id)
		if err != nil || !ok {
			return err
		}
		found = true
		return s.outbox.Insert(ctx, tx, domain.NewSubmissionDeletedEvent(id))
	})
	if err != nil {
		return domain.ErrInternal("delete submission", err)
	}
	if !found {
		return domain.ErrNotFound("submission", id.String())
	}
	s.logger.Info("submission deleted", "submission_id", id, "admin_id", adminID)
	return nil
}

func (s *ModerationService) mutate(
	ctx context.Context,
	id uuid.UUID,
	event domain.EventType,
	apply func(tx repository.DBTX) (*domain.ScoreSubmission, error),
) (*domain.ScoreSubmission, error) {
	var updated *domain.ScoreSubmission
	err := s.tx.InTx(ctx, func(tx repository.DBTX) error {
		sub, err := apply(tx)
		if err != nil || sub == nil {
			return err
		}
		updated = sub
		return s.outbox.Insert(ctx, tx, domain.NewSubmissionEvent(event, sub))
	})
	if err != nil {
		return nil, domain.ErrInternal("update submission", err)
	}
	if updated == nil {
		return nil, domain.ErrNotFound("submission", id.String())
	}
	return updated, nil
}
