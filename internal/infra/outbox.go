package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/repository"
)

// Publisher sends a keyed message to a topic. KafkaProducer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// OutboxMessage is the envelope relayed for each outbox row.
type OutboxMessage struct {
	EventID       string          `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// OutboxPoller relays event_outbox rows to a Publisher in id order.
type OutboxPoller struct {
	db        repository.DBTX
	outbox    repository.OutboxRepository
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a new outbox poller.
func NewOutboxPoller(db repository.DBTX, outbox repository.OutboxRepository, publisher Publisher, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxPoller {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		db:        db,
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) error {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return nil
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// PollOnce publishes one batch and returns how many rows were marked published.
// Publishing stops at the first failure so later events never overtake earlier ones.
func (p *OutboxPoller) PollOnce(ctx context.Context) (int, error) {
	rows, err := p.outbox.FetchUnpublished(ctx, p.db, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(rows))
	var publishErr error
	for _, row := range rows {
		msg, err := json.Marshal(envelope(row))
		if err != nil {
			publishErr = fmt.Errorf("marshal outbox event %s: %w", row.EventID, err)
			break
		}
		if err := p.publisher.Publish(ctx, row.Topic(), []byte(row.AggregateID), msg); err != nil {
			publishErr = fmt.Errorf("publish outbox event %s: %w", row.EventID, err)
			break
		}
		published = append(published, row.SeqID)
	}

	if err := p.outbox.MarkPublished(ctx, p.db, published); err != nil {
		return 0, err
	}
	p.logger.Debug("outbox poll complete", "published", len(published))
	return len(published), publishErr
}

func envelope(row domain.OutboxRow) OutboxMessage {
	return OutboxMessage{
		EventID:       row.EventID.String(),
		AggregateType: string(row.AggregateType),
		AggregateID:   row.AggregateID,
		EventType:     string(row.EventType),
		Payload:       row.Payload,
		OccurredAt:    row.OccurredAt,
	}
}
