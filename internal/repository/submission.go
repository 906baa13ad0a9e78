package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/retroarcade/hiscore/internal/domain"
)

const submissionColumns = `id, player_id, player_name, player_handle, game_id, game_name, event_id,
	score, image_url, status, submitted_at, is_suspicious, suspicion_reason,
	fraud_confidence, suggested_action, triaged_at, updated_at`

type submissionRepo struct{}

// NewSubmissionRepository returns a pgx-backed SubmissionRepository.
func NewSubmissionRepository() SubmissionRepository {
	return &submissionRepo{}
}

func (r *submissionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.ScoreSubmission, error) {
	row := db.QueryRow(ctx, `SELECT `+submissionColumns+` FROM score_submissions WHERE id = $1`, id)
	return scanSubmission(row)
}

func (r *submissionRepo) ListForPair(ctx context.Context, db DBTX, playerID, gameID uuid.UUID) ([]domain.ScoreSubmission, error) {
	rows, err := db.Query(ctx, `
		SELECT `+submissionColumns+` FROM score_submissions
		WHERE player_id = $1 AND game_id = $2
		ORDER BY submitted_at ASC, id ASC`, playerID, gameID)
	if err != nil {
		return nil, fmt.Errorf("list submissions for pair: %w", err)
	}
	return collectSubmissions(rows)
}

// List builds its WHERE clause from the non-zero filter fields.
func (r *submissionRepo) List(ctx context.Context, db DBTX, f domain.SubmissionFilter) ([]domain.ScoreSubmission, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.ExcludeRejected {
		where = append(where, "status <> "+arg(string(domain.StatusRejected)))
	}
	if f.Suspicious != nil {
		where = append(where, "coalesce(is_suspicious, false) = "+arg(*f.Suspicious))
	}
	if f.GameID != nil {
		where = append(where, "game_id = "+arg(*f.GameID))
	}
	if f.PlayerID != nil {
		where = append(where, "player_id = "+arg(*f.PlayerID))
	}
	if f.EventID != "" {
		where = append(where, "event_id = "+arg(f.EventID))
	}

	query := `SELECT ` + submissionColumns + ` FROM score_submissions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submitted_at DESC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return collectSubmissions(rows)
}

func (r *submissionRepo) Create(ctx context.Context, db DBTX, s *domain.ScoreSubmission) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := db.QueryRow(ctx, `
		INSERT INTO score_submissions
		  (id, player_id, player_name, player_handle, game_id, game_name, event_id, score, image_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING submitted_at, updated_at`,
		s.ID, s.PlayerID, s.PlayerName, s.PlayerHandle, s.GameID, s.GameName,
		s.EventID, s.Score, s.ImageURL, string(s.Status),
	).Scan(&s.SubmittedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// ApplyTriage writes fraud fields. A rejecting result also moves a pending
// submission to rejected; a status an admin already set is left alone.
// It returns nil when the row is gone, or already triaged and t.IfUntriaged is set.
func (r *submissionRepo) ApplyTriage(ctx context.Context, db DBTX, id uuid.UUID, t domain.TriageResult) (*domain.ScoreSubmission, error) {
	var action *string
	if t.SuggestedAction != "" {
		action = &t.SuggestedAction
	}
	row := db.QueryRow(ctx, `
		UPDATE score_submissions SET
		  is_suspicious = $2,
		  suspicion_reason = $3,
		  fraud_confidence = $4,
		  suggested_action = $5,
		  status = CASE WHEN $6 AND status = 'pending' THEN 'rejected' ELSE status END,
		  triaged_at = now(),
		  updated_at = now()
		WHERE id = $1 AND (NOT $7 OR triaged_at IS NULL)
		RETURNING `+submissionColumns,
		id, t.IsSuspicious, t.Reason, t.Confidence, action, t.Reject, t.IfUntriaged)
	return scanSubmission(row)
}

func (r *submissionRepo) UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.SubmissionStatus) (*domain.ScoreSubmission, error) {
	row := db.QueryRow(ctx, `
		UPDATE score_submissions SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+submissionColumns, id, string(status))
	return scanSubmission(row)
}

func (r *submissionRepo) UpdateScore(ctx context.Context, db DBTX, id uuid.UUID, score int64) (*domain.ScoreSubmission, error) {
	row := db.QueryRow(ctx, `
		UPDATE score_submissions SET score = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+submissionColumns, id, score)
	return scanSubmission(row)
}

func (r *submissionRepo) Delete(ctx context.Context, db DBTX, id uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `DELETE FROM score_submissions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete submission: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *submissionRepo) ListUntriaged(ctx context.Context, db DBTX, cutoff time.Time, limit int) ([]domain.ScoreSubmission, error) {
	rows, err := db.Query(ctx, `
		SELECT `+submissionColumns+` FROM score_submissions
		WHERE status = 'pending' AND triaged_at IS NULL AND submitted_at < $1
		ORDER BY submitted_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list untriaged submissions: %w", err)
	}
	return collectSubmissions(rows)
}

func collectSubmissions(rows pgx.Rows) ([]domain.ScoreSubmission, error) {
	defer rows.Close()
	var subs []domain.ScoreSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

func scanSubmission(row pgx.Row) (*domain.ScoreSubmission, error) {
	var s domain.ScoreSubmission
	var status string
	err := row.Scan(
		&s.ID, &s.PlayerID, &s.PlayerName, &s.PlayerHandle, &s.GameID, &s.GameName, &s.EventID,
		&s.Score, &s.ImageURL, &status, &s.SubmittedAt, &s.IsSuspicious, &s.SuspicionReason,
		&s.FraudConfidence, &s.SuggestedAction, &s.TriagedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	s.Status = domain.SubmissionStatus(status)
	return &s, nil
}
