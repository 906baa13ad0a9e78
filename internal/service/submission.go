package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/guard"
	"github.com/retroarcade/hiscore/internal/repository"
)

const (
	fraudCircuitKey   = "fraud-check"
	staleTriageReason = "fraud check did not complete"
	staleSweepBatch   = 100
)

// ObjectStore stores proof images and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// FraudScorer assesses a submission against the player's history.
type FraudScorer interface {
	ScoreFraud(ctx context.Context, req domain.FraudCheckRequest) (*domain.FraudAssessment, error)
}

// SubmissionConfig holds the gatekeeper's limits.
type SubmissionConfig struct {
	Cap           int
	MaxImageBytes int64
	UploadTimeout time.Duration
	FraudTimeout  time.Duration
}

// SubmissionService accepts score submissions and runs fraud triage in the background.
type SubmissionService struct {
	db       repository.DBTX
	tx       repository.Transactor
	players  repository.PlayerRepository
	games    repository.GameRepository
	subs     repository.SubmissionRepository
	settings repository.AppConfigRepository
	outbox   repository.OutboxRepository
	store    ObjectStore
	scorer   FraudScorer
	breaker  *guard.CircuitBreaker
	cfg      SubmissionConfig
	logger   *slog.Logger

	wg  sync.WaitGroup
	now func() time.Time
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	db repository.DBTX,
	tx repository.Transactor,
	players repository.PlayerRepository,
	games repository.GameRepository,
	subs repository.SubmissionRepository,
	settings repository.AppConfigRepository,
	outbox repository.OutboxRepository,
	store ObjectStore,
	scorer FraudScorer,
	breaker *guard.CircuitBreaker,
	cfg SubmissionConfig,
	logger *slog.Logger,
) *SubmissionService {
	if cfg.Cap <= 0 {
		cfg.Cap = domain.DefaultSubmissionCap
	}
	return &SubmissionService{
		db:       db,
		tx:       tx,
		players:  players,
		games:    games,
		subs:     subs,
		settings: settings,
		outbox:   outbox,
		store:    store,
		scorer:   scorer,
		breaker:  breaker,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitInput is a raw submission as received from the form. The player and
// the game may each be given by id or by name.
type SubmitInput struct {
	PlayerID    string
	PlayerName  string
	GameID      string
	GameName    string
	Score       string
	Image       []byte
	ContentType string
}

// SubmitResult is returned once the submission is stored.
type SubmitResult struct {
	SubmissionID uuid.UUID               `json:"submission_id"`
	Status       domain.SubmissionStatus `json:"status"`
}

// Submit validates, enforces the per-game cap, stores the proof image and the
// pending submission, then starts fraud triage without waiting for it.
func (s *SubmissionService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	score, err := domain.ParseScore(in.Score)
	if err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	contentType, err := s.checkImage(in.Image, in.ContentType)
	if err != nil {
		return nil, err
	}
	game, err := s.resolveGame(ctx, in.GameID, in.GameName)
	if err != nil {
		return nil, err
	}
	player, err := s.resolvePlayer(ctx, in.PlayerID, in.PlayerName)
	if err != nil {
		return nil, err
	}

	prior, err := s.subs.ListForPair(ctx, s.db, player.ID, game.ID)
	if err != nil {
		return nil, domain.ErrInternal("load prior submissions", err)
	}
	if len(prior) >= s.cfg.Cap {
		return nil, domain.ErrCapacity(s.cfg.Cap)
	}

	settings, err := s.settings.Get(ctx, s.db)
	if err != nil {
		return nil, domain.ErrInternal("load event settings", err)
	}

	sub := &domain.ScoreSubmission{
		ID:           uuid.New(),
		PlayerID:     player.ID,
		PlayerName:   player.Name,
		PlayerHandle: player.Handle,
		GameID:       game.ID,
		GameName:     game.Name,
		EventID:      settings.EventID,
		Score:        score,
		Status:       domain.StatusPending,
	}

	key := imageKey(game, sub, contentType)
	url, err := s.upload(ctx, key, in.Image, contentType)
	if err != nil {
		return nil, domain.ErrUpstream("image upload failed", err)
	}
	sub.ImageURL = &url

	err = s.tx.InTx(ctx, func(tx repository.DBTX) error {
		if err := s.subs.Create(ctx, tx, sub); err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, domain.NewSubmissionEvent(domain.EventSubmissionCreated, sub))
	})
	if err != nil {
		s.discardImage(ctx, key)
		return nil, domain.ErrInternal("save submission", err)
	}

	s.logger.Info("submission accepted",
		"submission_id", sub.ID,
		"player_id", player.ID,
		"game_id", game.ID,
		"score", score,
		"prior_count", len(prior),
	)

	req := buildFraudRequest(sub, player, prior)
	s.wg.Add(1)
	go s.triage(context.WithoutCancel(ctx), sub.ID, req)

	return &SubmitResult{SubmissionID: sub.ID, Status: sub.Status}, nil
}

// Wait blocks until every background triage started so far has finished.
func (s *SubmissionService) Wait() {
	s.wg.Wait()
}

func (s *SubmissionService) checkImage(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", domain.ErrValidation("a photo of the score is required")
	}
	if int64(len(data)) > s.cfg.MaxImageBytes && s.cfg.MaxImageBytes > 0 {
		return "", domain.ErrValidation(fmt.Sprintf("image exceeds %d bytes", s.cfg.MaxImageBytes))
	}
	contentType := strings.TrimSpace(strings.Split(declared, ";")[0])
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", domain.ErrValidation("the uploaded file is not an image")
	}
	return contentType, nil
}

func (s *SubmissionService) resolveGame(ctx context.Context, rawID, name string) (*domain.Game, error) {
	var game *domain.Game
	switch {
	case strings.TrimSpace(rawID) != "":
		id, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil {
			return nil, domain.ErrValidation("invalid game id")
		}
		game, err = s.games.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, domain.ErrInternal("find game", err)
		}
	case strings.TrimSpace(name) != "":
		name = strings.TrimSpace(name)
		var err error
		game, err = s.games.FindByNameOrSlug(ctx, s.db, name, GameSlug(name))
		if err != nil {
			return nil, domain.ErrInternal("find game", err)
		}
	default:
		return nil, domain.ErrValidation("game is required")
	}
	if game == nil || !game.Active {
		return nil, domain.ErrValidation("game is not open for submissions")
	}
	return game, nil
}

func (s *SubmissionService) resolvePlayer(ctx context.Context, rawID, name string) (*domain.Player, error) {
	switch {
	case strings.TrimSpace(rawID) != "":
		id, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil {
			return nil, domain.ErrValidation("invalid player id")
		}
		p, err := s.players.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, domain.ErrInternal("find player", err)
		}
		if p == nil {
			return nil, domain.ErrNotFound("player", id.String())
		}
		return p, nil
	case strings.TrimSpace(name) != "":
		name = strings.TrimSpace(name)
		p, err := s.players.FindByName(ctx, s.db, name)
		if err != nil {
			return nil, domain.ErrInternal("find player", err)
		}
		if p == nil {
			return nil, domain.ErrNotFound("player", name)
		}
		return p, nil
	default:
		return nil, domain.ErrValidation("player is required")
	}
}

func (s *SubmissionService) upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()
	return s.store.Put(ctx, key, data, contentType)
}

func (s *SubmissionService) discardImage(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UploadTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("orphaned proof image", "key", key, "error", err)
	}
}

func imageKey(game *domain.Game, sub *domain.ScoreSubmission, contentType string) string {
	ext := ""
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	case "image/gif":
		ext = ".gif"
	}
	return fmt.Sprintf("submissions/%s/%s/%s%s", game.Slug, sub.PlayerID, sub.ID, ext)
}

// buildFraudRequest assembles the scorer's input. Prior scores carry no
// identifiers and are ordered oldest first.
func buildFraudRequest(sub *domain.ScoreSubmission, player *domain.Player, prior []domain.ScoreSubmission) domain.FraudCheckRequest {
	history := make([]domain.PriorScore, 0, len(prior))
	for _, p := range prior {
		history = append(history, domain.PriorScore{Score: p.Score, SubmittedAt: p.SubmittedAt.UTC()})
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].SubmittedAt.Before(history[j].SubmittedAt)
	})

	req := domain.FraudCheckRequest{
		Submission: domain.FraudSubmission{
			PlayerID:    sub.PlayerID.String(),
			GameName:    sub.GameName,
			Score:       sub.Score,
			SubmittedAt: sub.SubmittedAt.UTC(),
		},
		Player:      domain.FraudPlayer{Name: player.Name, Handle: player.Handle},
		PriorScores: history,
	}
	if sub.ImageURL != nil {
		req.Submission.ImageURL = *sub.ImageURL
	}
	return req
}

func (s *SubmissionService) triage(ctx context.Context, id uuid.UUID, req domain.FraudCheckRequest) {
	defer s.wg.Done()

	result := s.assess(ctx, req)
	if result.Reject {
		s.logger.Warn("fraud triage failed, rejecting submission", "submission_id", id, "reason", result.Reason)
	}

	writeCtx, cancel := context.WithTimeout(ctx, domain.TriageWriteTimeout)
	defer cancel()
	if _, err := s.applyTriage(writeCtx, id, result); err != nil {
		s.logger.Error("store triage result", "submission_id", id, "error", err)
	}
}

// assess calls the scorer under the fraud timeout and the circuit breaker.
// Every failure becomes a rejecting result; nothing is retried.
func (s *SubmissionService) assess(ctx context.Context, req domain.FraudCheckRequest) domain.TriageResult {
	if check := s.breaker.Check(fraudCircuitKey); !check.Allowed {
		return failedTriage(check.Reason)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FraudTimeout)
	defer cancel()

	assessment, err := s.scorer.ScoreFraud(ctx, req)
	if err != nil {
		s.breaker.RecordFailure(fraudCircuitKey)
		if errors.Is(err, context.DeadlineExceeded) {
			return failedTriage(fmt.Sprintf("timed out after %s", s.cfg.FraudTimeout))
		}
		return failedTriage(err.Error())
	}
	s.breaker.RecordSuccess(fraudCircuitKey)

	confidence := min(max(assessment.Confidence, 0), 100)
	assessment.Confidence = confidence
	return domain.TriageResult{
		IsSuspicious:    assessment.IsSuspicious,
		Reason:          assessment.Summary(),
		Confidence:      &confidence,
		SuggestedAction: assessment.SuggestedAction,
	}
}

func failedTriage(diagnostic string) domain.TriageResult {
	return domain.TriageResult{
		Reason: "fraud check failed: " + diagnostic,
		Reject: true,
	}
}

// applyTriage stores result and reports whether a row was written.
func (s *SubmissionService) applyTriage(ctx context.Context, id uuid.UUID, result domain.TriageResult) (bool, error) {
	written := false
	err := s.tx.InTx(ctx, func(tx repository.DBTX) error {
		updated, err := s.subs.ApplyTriage(ctx, tx, id, result)
		if err != nil {
			return err
		}
		if updated == nil {
			// Deleted by an admin, or the sweeper lost to a late triage.
			return nil
		}
		written = true
		return s.outbox.Insert(ctx, tx, domain.NewSubmissionEvent(domain.EventSubmissionTriaged, updated))
	})
	return written, err
}

// SweepStaleTriage rejects pending submissions whose triage never recorded a
// result, such as when the process stopped mid-check. It returns how many it touched.
func (s *SubmissionService) SweepStaleTriage(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := s.now().Add(-staleAfter)
	stale, err := s.subs.ListUntriaged(ctx, s.db, cutoff, staleSweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list untriaged: %w", err)
	}

	swept := 0
	for _, sub := range stale {
		written, err := s.applyTriage(ctx, sub.ID, domain.TriageResult{
			Reason:      staleTriageReason,
			Reject:      true,
			IfUntriaged: true,
		})
		if err != nil {
			return swept, fmt.Errorf("reject stale submission %s: %w", sub.ID, err)
		}
		if written {
			swept++
		}
	}
	if swept > 0 {
		s.logger.Warn("rejected submissions with stale triage", "count", swept, "cutoff", cutoff)
	}
	return swept, nil
}
