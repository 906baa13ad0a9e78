package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/guard"
	"github.com/retroarcade/hiscore/internal/repository"
)

const verifyCircuitKey = "verify-score-image"

// ImageFetcher downloads a stored proof image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// ImageVerifier compares a photographed score with the entered one.
type ImageVerifier interface {
	VerifyImage(ctx context.Context, req domain.VerificationRequest) (*domain.VerificationVerdict, error)
}

// VerificationService runs on-demand photo verification for admins.
type VerificationService struct {
	db       repository.DBTX
	subs     repository.SubmissionRepository
	fetcher  ImageFetcher
	verifier ImageVerifier
	breaker  *guard.CircuitBreaker
	timeout  time.Duration
	logger   *slog.Logger
}

// NewVerificationService creates a new VerificationService. timeout bounds the
// image download and the verifier call together.
func NewVerificationService(
	db repository.DBTX,
	subs repository.SubmissionRepository,
	fetcher ImageFetcher,
	verifier ImageVerifier,
	breaker *guard.CircuitBreaker,
	timeout time.Duration,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		db:       db,
		subs:     subs,
		fetcher:  fetcher,
		verifier: verifier,
		breaker:  breaker,
		timeout:  timeout,
		logger:   logger,
	}
}

// Verify checks a submission's photo against its entered score. The verdict is
// returned to the caller only; nothing is written back.
func (s *VerificationService) Verify(ctx context.Context, submissionID uuid.UUID) (*domain.VerificationVerdict, error) {
	sub, err := s.subs.FindByID(ctx, s.db, submissionID)
	if err != nil {
		return nil, domain.ErrInternal("find submission", err)
	}
	if sub == nil {
		return nil, domain.ErrNotFound("submission", submissionID.String())
	}
	if sub.ImageURL == nil || *sub.ImageURL == "" {
		return nil, domain.ErrValidation("submission has no image to verify")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, contentType, err := s.fetcher.Fetch(ctx, *sub.ImageURL)
	if err != nil {
		s.logger.Warn("verification image fetch failed", "submission_id", sub.ID, "error", err)
		return nil, domain.ErrUpstream("could not download the submission image", err)
	}

	if check := s.breaker.Check(verifyCircuitKey); !check.Allowed {
		return nil, domain.ErrUpstream("image verification is temporarily unavailable", errors.New(check.Reason))
	}

	verdict, err := s.verifier.VerifyImage(ctx, domain.VerificationRequest{
		Image:        dataURI(data, contentType),
		EnteredScore: sub.Score,
		GameName:     sub.GameName,
	})
	if err != nil {
		s.breaker.RecordFailure(verifyCircuitKey)
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", s.timeout, err)
		}
		s.logger.Warn("image verification failed", "submission_id", sub.ID, "error", err)
		return nil, domain.ErrUpstream("image verification failed", err)
	}
	s.breaker.RecordSuccess(verifyCircuitKey)

	verdict.Normalize()
	s.logger.Info("image verification complete",
		"submission_id", sub.ID,
		"verified", verdict.IsVerified,
		"confidence", verdict.Confidence,
	)
	return verdict, nil
}

// dataURI encodes image bytes, trusting an image/* content type from the
// store and sniffing otherwise.
func dataURI(data []byte, contentType string) string {
	mime := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
