package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/auth"
	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/handler"
)

const maxListLimit = 500

// Moderator is the submission moderation surface.
type Moderator interface {
	List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.ScoreSubmission, error)
	SetStatus(ctx context.Context, adminID string, id uuid.UUID, status domain.SubmissionStatus) (*domain.ScoreSubmission, error)
	EditScore(ctx context.Context, adminID string, id uuid.UUID, rawScore string) (*domain.ScoreSubmission, error)
	Delete(ctx context.Context, adminID string, id uuid.UUID) error
}

// Verifier runs an on-demand image check.
type Verifier interface {
	Verify(ctx context.Context, submissionID uuid.UUID) (*domain.VerificationVerdict, error)
}

// SubmissionAdminHandler handles submission review.
type SubmissionAdminHandler struct {
	moderation Moderator
	verifier   Verifier
	logger     *slog.Logger
}

// NewSubmissionAdminHandler creates a new SubmissionAdminHandler.
func NewSubmissionAdminHandler(moderation Moderator, verifier Verifier, logger *slog.Logger) *SubmissionAdminHandler {
	return &SubmissionAdminHandler{moderation: moderation, verifier: verifier, logger: logger}
}

// List handles GET /admin/submissions?status=&suspicious=&game=&event=&limit=.
func (h *SubmissionAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	subs, err := h.moderation.List(r.Context(), filter)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, subs)
}

func parseFilter(r *http.Request) (domain.SubmissionFilter, error) {
	q := r.URL.Query()
	filter := domain.SubmissionFilter{
		Status:  domain.SubmissionStatus(q.Get("status")),
		EventID: q.Get("event"),
		Limit:   100,
	}
	if raw := q.Get("suspicious"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, domain.ErrValidation("suspicious must be true or false")
		}
		filter.Suspicious = &v
	}
	if raw := q.Get("game"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, domain.ErrValidation("invalid game id")
		}
		filter.GameID = &id
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			return filter, domain.ErrValidation("limit must be between 1 and 500")
		}
		filter.Limit = n
	}
	return filter, nil
}

// SetStatus handles PATCH /admin/submissions/{id}/status.
func (h *SubmissionAdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.URLUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Status domain.SubmissionStatus `json:"status"`
	}
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	sub, err := h.moderation.SetStatus(r.Context(), auth.SubjectFromContext(r.Context()), id, body.Status)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, sub)
}

// EditScore handles PATCH /admin/submissions/{id}/score. The score may be sent
// as a JSON number or a digit string.
func (h *SubmissionAdminHandler) EditScore(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.URLUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Score json.Number `json:"score"`
	}
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.RespondError(w, domain.ErrValidation("score must be a whole number"))
		return
	}
	sub, err := h.moderation.EditScore(r.Context(), auth.SubjectFromContext(r.Context()), id, body.Score.String())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, sub)
}

// Delete handles DELETE /admin/submissions/{id}.
func (h *SubmissionAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.URLUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.moderation.Delete(r.Context(), auth.SubjectFromContext(r.Context()), id); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Verify handles POST /admin/submissions/{id}/verify. Nothing is written back;
// the verdict is advisory.
func (h *SubmissionAdminHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.URLUUID(w, r, "id")
	if !ok {
		return
	}
	verdict, err := h.verifier.Verify(r.Context(), id)
	if err != nil {
		if domain.HasCode(err, domain.CodeUpstream) {
			h.logger.Warn("image verification failed", "submission_id", id, "error", err)
		}
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, verdict)
}
