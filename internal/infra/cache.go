package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/retroarcade/hiscore/internal/ranking"
)

const leaderboardKeyPrefix = "leaderboard:"

// LeaderboardCache stores computed boards in Redis keyed by event.
// With no Redis URL every call is a miss and writes are no-ops.
type LeaderboardCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	enabled bool
}

// NewLeaderboardCache connects to redisURL. An empty URL returns a disabled cache.
func NewLeaderboardCache(ctx context.Context, redisURL string, ttl time.Duration, logger *slog.Logger) (*LeaderboardCache, error) {
	if redisURL == "" {
		logger.Info("leaderboard cache disabled")
		return &LeaderboardCache{logger: logger}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("leaderboard cache initialized", "addr", opts.Addr, "ttl", ttl)
	return NewLeaderboardCacheFromClient(client, ttl, logger), nil
}

// NewLeaderboardCacheFromClient wraps an existing client.
func NewLeaderboardCacheFromClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl, logger: logger, enabled: true}
}

func leaderboardKey(eventID string) string {
	if eventID == "" {
		return leaderboardKeyPrefix + "_all"
	}
	return leaderboardKeyPrefix + eventID
}

// Get returns the cached boards for eventID. ok is false on a miss.
func (c *LeaderboardCache) Get(ctx context.Context, eventID string) ([]ranking.GameBoard, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, leaderboardKey(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get leaderboard: %w", err)
	}

	var boards []ranking.GameBoard
	if err := json.Unmarshal(data, &boards); err != nil {
		return nil, false, fmt.Errorf("decode cached leaderboard: %w", err)
	}
	return boards, true, nil
}

// Set stores boards for eventID with the configured TTL.
func (c *LeaderboardCache) Set(ctx context.Context, eventID string, boards []ranking.GameBoard) error {
	if !c.enabled {
		return nil
	}
	data, err := json.Marshal(boards)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	if err := c.client.Set(ctx, leaderboardKey(eventID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set leaderboard: %w", err)
	}
	return nil
}

// Invalidate drops every cached board. Any submission or game change can
// affect boards of every event, so there is no finer-grained eviction.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	iter := c.client.Scan(ctx, 0, leaderboardKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan leaderboard keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete leaderboard keys: %w", err)
	}
	c.logger.Debug("leaderboard cache invalidated", "keys", len(keys))
	return nil
}

// Close releases the Redis client.
func (c *LeaderboardCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
