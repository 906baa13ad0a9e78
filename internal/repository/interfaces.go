package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/retroarcade/hiscore/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Transactor runs fn inside a database transaction, committing when fn returns nil.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx DBTX) error) error
}

// PlayerRepository provides access to players. Finders return nil, nil when absent.
type PlayerRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error)

	// FindByName matches case-insensitively.
	FindByName(ctx context.Context, db DBTX, name string) (*domain.Player, error)

	List(ctx context.Context, db DBTX) ([]domain.Player, error)
	Create(ctx context.Context, db DBTX, p *domain.Player) error
	Update(ctx context.Context, db DBTX, p *domain.Player) error
	Delete(ctx context.Context, db DBTX, id uuid.UUID) (bool, error)
}

// GameRepository provides access to the game catalog.
type GameRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Game, error)

	// FindByNameOrSlug matches the display name case-insensitively or the slug exactly.
	FindByNameOrSlug(ctx context.Context, db DBTX, name, slug string) (*domain.Game, error)

	List(ctx context.Context, db DBTX, activeOnly bool) ([]domain.Game, error)
	Create(ctx context.Context, db DBTX, g *domain.Game) error
	Update(ctx context.Context, db DBTX, g *domain.Game) error
	Delete(ctx context.Context, db DBTX, id uuid.UUID) (bool, error)
}

// SubmissionRepository provides access to score_submissions.
type SubmissionRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.ScoreSubmission, error)

	// ListForPair returns a player's submissions for one game ordered by submitted_at ASC.
	ListForPair(ctx context.Context, db DBTX, playerID, gameID uuid.UUID) ([]domain.ScoreSubmission, error)

	List(ctx context.Context, db DBTX, filter domain.SubmissionFilter) ([]domain.ScoreSubmission, error)

	// Create inserts the submission and sets ID, SubmittedAt and UpdatedAt from the database.
	Create(ctx context.Context, db DBTX, sub *domain.ScoreSubmission) error

	ApplyTriage(ctx context.Context, db DBTX, id uuid.UUID, result domain.TriageResult) (*domain.ScoreSubmission, error)
	UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.SubmissionStatus) (*domain.ScoreSubmission, error)
	UpdateScore(ctx context.Context, db DBTX, id uuid.UUID, score int64) (*domain.ScoreSubmission, error)
	Delete(ctx context.Context, db DBTX, id uuid.UUID) (bool, error)

	// ListUntriaged returns pending submissions submitted before cutoff that were never triaged.
	ListUntriaged(ctx context.Context, db DBTX, cutoff time.Time, limit int) ([]domain.ScoreSubmission, error)
}

// OfferRepository provides access to offers.
type OfferRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Offer, error)
	List(ctx context.Context, db DBTX, activeOnly bool) ([]domain.Offer, error)
	Create(ctx context.Context, db DBTX, o *domain.Offer) error
	Update(ctx context.Context, db DBTX, o *domain.Offer) error
	Delete(ctx context.Context, db DBTX, id uuid.UUID) (bool, error)
}

// AppConfigRepository provides access to the singleton app_config row.
type AppConfigRepository interface {
	Get(ctx context.Context, db DBTX) (*domain.AppConfig, error)
	Save(ctx context.Context, db DBTX, cfg *domain.AppConfig) error
}

// AdminRepository provides access to admins.
type AdminRepository interface {
	FindByEmail(ctx context.Context, db DBTX, email string) (*domain.Admin, error)

	// IsMember reports whether id belongs to an active admin.
	IsMember(ctx context.Context, db DBTX, id uuid.UUID) (bool, error)

	// Upsert seeds or refreshes an admin by email.
	Upsert(ctx context.Context, db DBTX, a *domain.Admin) error
}

// LoginAttemptRepository records admin sign-in attempts for lockout.
// Emails are stored lower-cased.
type LoginAttemptRepository interface {
	Record(ctx context.Context, db DBTX, email, ip string, success bool) error

	// CountFailures counts failed attempts for email since the given time.
	CountFailures(ctx context.Context, db DBTX, email string, since time.Time) (int, error)

	// DeleteBefore removes attempts older than the given time.
	DeleteBefore(ctx context.Context, db DBTX, before time.Time) (int64, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the state change).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the relay, oldest first.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRow, error)

	// MarkPublished stamps published_at on the given rows.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
