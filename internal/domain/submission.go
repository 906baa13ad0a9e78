package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the moderation lifecycle of a score submission.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// DefaultSubmissionCap is the number of submissions a player may make per game.
const DefaultSubmissionCap = 5

// TriageWriteTimeout bounds storing a fraud result once the check returns.
const TriageWriteTimeout = 10 * time.Second

// ScoreSubmission is a single score claim with photo proof.
// Player and game names are copied at submission time so the record survives
// deletion of either.
type ScoreSubmission struct {
	ID              uuid.UUID        `json:"id"`
	PlayerID        uuid.UUID        `json:"player_id"`
	PlayerName      string           `json:"player_name"`
	PlayerHandle    string           `json:"player_handle,omitempty"`
	GameID          uuid.UUID        `json:"game_id"`
	GameName        string           `json:"game_name"`
	EventID         string           `json:"event_id,omitempty"`
	Score           int64            `json:"score"`
	ImageURL        *string          `json:"image_url,omitempty"`
	Status          SubmissionStatus `json:"status"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	IsSuspicious    *bool            `json:"is_suspicious,omitempty"`
	SuspicionReason *string          `json:"suspicion_reason,omitempty"`
	FraudConfidence *int             `json:"fraud_confidence,omitempty"`
	SuggestedAction *string          `json:"suggested_action,omitempty"`
	TriagedAt       *time.Time       `json:"triaged_at,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// SubmissionFilter narrows submission listings. Zero values mean "any".
type SubmissionFilter struct {
	Status          SubmissionStatus
	Suspicious      *bool
	GameID          *uuid.UUID
	PlayerID        *uuid.UUID
	EventID         string
	ExcludeRejected bool
	Limit           int
}

// PriorScore is a historical score given to the fraud scorer. It deliberately
// carries no identifiers.
type PriorScore struct {
	Score       int64     `json:"scoreValue"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// FraudCheckRequest is the structured context sent to the fraud-scoring function.
type FraudCheckRequest struct {
	Submission  FraudSubmission `json:"submission"`
	Player      FraudPlayer     `json:"player"`
	PriorScores []PriorScore    `json:"priorScores"`
}

// FraudSubmission describes the submission under review.
type FraudSubmission struct {
	PlayerID    string    `json:"playerId"`
	GameName    string    `json:"gameName"`
	Score       int64     `json:"scoreValue"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// FraudPlayer is the player context for a fraud check.
type FraudPlayer struct {
	Name   string `json:"name"`
	Handle string `json:"handle,omitempty"`
}

// FraudAssessment is the fraud-scoring function's verdict.
type FraudAssessment struct {
	IsSuspicious    bool   `json:"isSuspicious"`
	Reason          string `json:"reason"`
	Confidence      int    `json:"confidence"`
	SuggestedAction string `json:"suggestedAction"`
}

// Summary renders the reason shown to admins, including confidence when known.
func (a FraudAssessment) Summary() string {
	if a.Confidence > 0 {
		return fmt.Sprintf("%s (confidence %d%%)", a.Reason, a.Confidence)
	}
	return a.Reason
}

// TriageResult is what gets written back to a submission after triage.
type TriageResult struct {
	IsSuspicious    bool
	Reason          string
	Confidence      *int
	SuggestedAction string
	// Reject marks the submission rejected, used when triage itself failed.
	Reject bool
	// IfUntriaged skips the write when a result is already recorded.
	IfUntriaged bool
}

// VerificationRequest is sent to the image-verification function.
type VerificationRequest struct {
	Image        string `json:"image"`
	EnteredScore int64  `json:"enteredScore"`
	GameName     string `json:"gameName"`
}

// VerificationVerdict is the result of comparing a photographed score with the entered one.
type VerificationVerdict struct {
	IsVerified         bool     `json:"isVerified"`
	ImageDetectedScore *float64 `json:"imageDetectedScore"`
	DiscrepancyReason  string   `json:"discrepancyReason"`
	Confidence         float64  `json:"confidence"`
}

// Normalize clamps confidence into [0,1].
func (v *VerificationVerdict) Normalize() {
	switch {
	case v.Confidence < 0:
		v.Confidence = 0
	case v.Confidence > 1:
		v.Confidence = 1
	}
}
