package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

// Listener holds one pooled connection in LISTEN mode and forwards every
// notification on Channel to a Broker.
type Listener struct {
	pool   *pgxpool.Pool
	broker *Broker
	logger *slog.Logger
}

// NewListener creates a listener feeding broker.
func NewListener(pool *pgxpool.Pool, broker *Broker, logger *slog.Logger) *Listener {
	return &Listener{pool: pool, broker: broker, logger: logger}
}

// Run listens until ctx is cancelled, reconnecting with backoff when the
// connection drops.
func (l *Listener) Run(ctx context.Context) error {
	delay := minReconnectDelay
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.logger.Info("change feed listener stopped")
			return nil
		}
		l.logger.Error("change feed listener interrupted", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer func() {
		// Return the connection clean so it can serve ordinary queries.
		cleanup, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(cleanup, "UNLISTEN *"); err != nil {
			conn.Conn().Close(cleanup)
		}
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	l.logger.Info("change feed listening", "channel", Channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		change, err := ParseChange(n.Payload)
		if err != nil {
			l.logger.Warn("malformed change notification", "payload", n.Payload, "error", err)
			continue
		}
		l.broker.Publish(change)
	}
}

// ParseChange decodes a trigger payload.
func ParseChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.Table == "" {
		return Change{}, fmt.Errorf("decode change: missing table")
	}
	return c, nil
}
