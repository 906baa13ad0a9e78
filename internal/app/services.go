package app

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retroarcade/hiscore/internal/auth"
	"github.com/retroarcade/hiscore/internal/guard"
	"github.com/retroarcade/hiscore/internal/infra"
	"github.com/retroarcade/hiscore/internal/repository"
	"github.com/retroarcade/hiscore/internal/service"
)

// AIFunctions is the hosted model service: fraud scoring and photo checks.
type AIFunctions interface {
	service.FraudScorer
	service.ImageVerifier
}

// Externals are the collaborators that live outside Postgres.
type Externals struct {
	Store   service.ObjectStore
	AI      AIFunctions
	Fetcher service.ImageFetcher
	Cache   service.BoardCache
}

// NewServices builds every application service on top of pool. Fraud checks
// and image verification share one circuit breaker keyed per function.
func NewServices(pool *pgxpool.Pool, jwtMgr *auth.JWTManager, ext Externals, cfg *infra.Config, logger *slog.Logger) Services {
	tx := repository.NewPgTransactor(pool)
	playerRepo := repository.NewPlayerRepository()
	gameRepo := repository.NewGameRepository()
	submissionRepo := repository.NewSubmissionRepository()
	offerRepo := repository.NewOfferRepository()
	settingsRepo := repository.NewAppConfigRepository()
	adminRepo := repository.NewPgAdminRepository()
	outboxRepo := repository.NewOutboxRepository()
	attemptRepo := repository.NewLoginAttemptRepository()

	breaker := guard.NewCircuitBreaker(5, time.Minute)

	return Services{
		Submissions: service.NewSubmissionService(pool, tx, playerRepo, gameRepo, submissionRepo, settingsRepo, outboxRepo,
			ext.Store, ext.AI, breaker, service.SubmissionConfig{
				Cap:           cfg.SubmissionCap,
				MaxImageBytes: cfg.MaxImageBytes,
				UploadTimeout: cfg.UploadTimeout,
				FraudTimeout:  cfg.FraudTimeout,
			}, logger),
		Verification: service.NewVerificationService(pool, submissionRepo, ext.Fetcher, ext.AI, breaker, cfg.VerifyTimeout, logger),
		Players:      service.NewPlayerService(pool, tx, playerRepo, submissionRepo, outboxRepo, logger),
		Catalog:      service.NewCatalogService(pool, gameRepo, logger),
		Offers:       service.NewOfferService(pool, offerRepo, logger),
		Settings:     service.NewSettingsService(pool, settingsRepo, logger),
		Moderation:   service.NewModerationService(pool, tx, submissionRepo, outboxRepo, logger),
		AdminAuth: service.NewAdminAuthService(pool, adminRepo, attemptRepo, jwtMgr, service.LoginLockout{
			MaxFailures: cfg.LoginMaxFailures,
			Window:      cfg.LoginLockoutWindow,
		}, logger),
		Leaderboard: service.NewLeaderboardService(pool, submissionRepo, gameRepo, ext.Cache, logger),
	}
}
