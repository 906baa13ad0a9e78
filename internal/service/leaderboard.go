package service

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/feed"
	"github.com/retroarcade/hiscore/internal/ranking"
	"github.com/retroarcade/hiscore/internal/repository"
)

// BoardCache stores computed leaderboards. infra.LeaderboardCache implements it.
type BoardCache interface {
	Get(ctx context.Context, eventID string) ([]ranking.GameBoard, bool, error)
	Set(ctx context.Context, eventID string, boards []ranking.GameBoard) error
	Invalidate(ctx context.Context) error
}

// LeaderboardService computes public rankings from the current snapshot.
type LeaderboardService struct {
	db     repository.DBTX
	subs   repository.SubmissionRepository
	games  repository.GameRepository
	cache  BoardCache
	logger *slog.Logger

	// generation counts invalidations seen by this process. Boards computed
	// across an invalidation are served but not cached.
	generation atomic.Uint64
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(
	db repository.DBTX,
	subs repository.SubmissionRepository,
	games repository.GameRepository,
	cache BoardCache,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{db: db, subs: subs, games: games, cache: cache, logger: logger}
}

// Boards returns the leaderboard for eventID (all events when empty).
// Rejected submissions are never ranked. Cache errors fall through to a
// fresh computation.
//
// A computation that overlaps an invalidation is not written back, so an old
// snapshot cannot outlive the change that cleared it. The guard is per
// process: with several API replicas sharing Redis, an invalidation seen only
// by another replica can still be overwritten, bounded by the cache TTL.
func (s *LeaderboardService) Boards(ctx context.Context, eventID string) ([]ranking.GameBoard, error) {
	if boards, ok, err := s.cache.Get(ctx, eventID); err != nil {
		s.logger.Warn("leaderboard cache read failed", "error", err)
	} else if ok {
		return boards, nil
	}

	gen := s.generation.Load()
	boards, err := s.Compute(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if s.generation.Load() != gen {
		return boards, nil
	}
	if err := s.cache.Set(ctx, eventID, boards); err != nil {
		s.logger.Warn("leaderboard cache write failed", "error", err)
	}
	return boards, nil
}

// Compute aggregates the leaderboard from the database, bypassing the cache.
func (s *LeaderboardService) Compute(ctx context.Context, eventID string) ([]ranking.GameBoard, error) {
	subs, err := s.subs.List(ctx, s.db, domain.SubmissionFilter{EventID: eventID, ExcludeRejected: true})
	if err != nil {
		return nil, domain.ErrInternal("list submissions", err)
	}
	games, err := s.games.List(ctx, s.db, false)
	if err != nil {
		return nil, domain.ErrInternal("list games", err)
	}
	return nonNil(ranking.Aggregate(subs, games, ranking.Options{EventID: eventID, ExcludeRejected: true})), nil
}

// Relevant reports whether a change can move the leaderboard.
func Relevant(c feed.Change) bool {
	return c.Table == "score_submissions" || c.Table == "games"
}

// InvalidateOnChange drops cached boards whenever the feed reports a relevant
// change. It returns when ctx is cancelled or the broker closes.
func (s *LeaderboardService) InvalidateOnChange(ctx context.Context, broker *feed.Broker) error {
	changes, cancel := broker.Subscribe(64)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if !Relevant(c) {
				continue
			}
			s.Invalidate(ctx)
		}
	}
}

// Invalidate drops every cached board and stops in-flight computations from
// caching what they read.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	if err := s.cache.Invalidate(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("leaderboard cache invalidation failed", "error", err)
	}
}
