package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/retroarcade/hiscore/internal/domain"
)

const (
	fraudCheckPath  = "/v1/functions/fraud-check"
	verifyImagePath = "/v1/functions/verify-score-image"

	// maxErrorBody caps how much of a failed response ends up in the error.
	maxErrorBody = 512
)

// GenAIClient calls the hosted prompt functions for fraud scoring and
// photo verification. Callers bound each call with a context deadline.
type GenAIClient struct {
	baseURL string
	apiKey  string
	logger  *slog.Logger
	client  *http.Client
}

// NewGenAIClient creates a client for the prompt service at baseURL.
// The http.Client timeout is a backstop; callers pass tighter deadlines.
func NewGenAIClient(baseURL, apiKey string, logger *slog.Logger) *GenAIClient {
	return &GenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// ScoreFraud asks the fraud-check function to assess a submission.
func (c *GenAIClient) ScoreFraud(ctx context.Context, req domain.FraudCheckRequest) (*domain.FraudAssessment, error) {
	var out domain.FraudAssessment
	if err := c.call(ctx, fraudCheckPath, req, &out); err != nil {
		return nil, fmt.Errorf("fraud check: %w", err)
	}
	return &out, nil
}

// VerifyImage asks the verify-score-image function to compare a photo with the entered score.
func (c *GenAIClient) VerifyImage(ctx context.Context, req domain.VerificationRequest) (*domain.VerificationVerdict, error) {
	var out domain.VerificationVerdict
	if err := c.call(ctx, verifyImagePath, req, &out); err != nil {
		return nil, fmt.Errorf("verify image: %w", err)
	}
	return &out, nil
}

func (c *GenAIClient) call(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("genai function returned error", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	c.logger.Debug("genai function call", "path", path, "duration", time.Since(start))
	return nil
}
