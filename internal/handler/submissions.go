package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/service"
)

// multipartOverhead covers the form fields sent alongside the image.
const multipartOverhead = 1 << 20

// Submitter accepts score submissions.
type Submitter interface {
	Submit(ctx context.Context, in service.SubmitInput) (*service.SubmitResult, error)
}

// SubmissionHandler handles score submissions.
type SubmissionHandler struct {
	submitter     Submitter
	maxImageBytes int64
	logger        *slog.Logger
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submitter Submitter, maxImageBytes int64, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{submitter: submitter, maxImageBytes: maxImageBytes, logger: logger}
}

// Submit handles POST /submissions (multipart/form-data).
// Fields: player_id or player_name, game_id or game_name, score, image.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(w, domain.ErrValidation(fmt.Sprintf("image exceeds %d bytes", h.maxImageBytes)))
			return
		}
		RespondError(w, domain.ErrValidation("expected a multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	input := service.SubmitInput{
		PlayerID:   r.FormValue("player_id"),
		PlayerName: r.FormValue("player_name"),
		GameID:     r.FormValue("game_id"),
		GameName:   r.FormValue("game_name"),
		Score:      r.FormValue("score"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		RespondError(w, domain.ErrValidation("unreadable image upload"))
		return
	default:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
		if err != nil {
			RespondError(w, domain.ErrValidation("unreadable image upload"))
			return
		}
		if int64(len(data)) > h.maxImageBytes {
			RespondError(w, domain.ErrValidation(fmt.Sprintf("image exceeds %d bytes", h.maxImageBytes)))
			return
		}
		input.Image = data
		input.ContentType = header.Header.Get("Content-Type")
	}

	result, err := h.submitter.Submit(r.Context(), input)
	if err != nil {
		if domain.HasCode(err, domain.CodeInternal) || domain.HasCode(err, domain.CodeUpstream) {
			h.logger.Error("submission failed", "error", err, "request_id", GetRequestID(r.Context()))
		}
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}
