package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AggregateType names the entity an outbox event belongs to.
type AggregateType string

// EventType names what happened to the aggregate.
type EventType string

const (
	AggregateSubmission AggregateType = "submission"
	AggregatePlayer     AggregateType = "player"

	EventSubmissionCreated       EventType = "created"
	EventSubmissionTriaged       EventType = "triaged"
	EventSubmissionStatusChanged EventType = "status_changed"
	EventSubmissionScoreEdited   EventType = "score_edited"
	EventSubmissionDeleted       EventType = "deleted"
	EventPlayerRegistered        EventType = "registered"
)

// OutboxDraft is an event written to event_outbox in the same transaction as
// the state change it describes.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// OutboxRow is an unpublished outbox entry with its sequence id.
type OutboxRow struct {
	SeqID int64
	OutboxDraft
}

// Topic is the Kafka topic the event is relayed to.
func (d OutboxDraft) Topic() string {
	return "arcade." + string(d.AggregateType) + "." + string(d.EventType)
}

// NewSubmissionEvent snapshots a submission into an outbox event.
func NewSubmissionEvent(eventType EventType, sub *ScoreSubmission) OutboxDraft {
	payload, _ := json.Marshal(sub)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateSubmission,
		AggregateID:   sub.ID.String(),
		EventType:     eventType,
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewSubmissionDeletedEvent records a deletion by id only.
func NewSubmissionDeletedEvent(id uuid.UUID) OutboxDraft {
	payload, _ := json.Marshal(map[string]string{"id": id.String()})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateSubmission,
		AggregateID:   id.String(),
		EventType:     EventSubmissionDeleted,
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewPlayerRegisteredEvent creates a player lifecycle event.
func NewPlayerRegisteredEvent(p *Player) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"player_id":  p.ID.String(),
		"name":       p.Name,
		"handle":     p.Handle,
		"group_size": p.GroupSize,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregatePlayer,
		AggregateID:   p.ID.String(),
		EventType:     EventPlayerRegistered,
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
