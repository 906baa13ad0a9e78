package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/repository"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validConfig() *Config {
	return &Config{
		JWTSecret:           "0123456789abcdef0123456789abcdef",
		GenAIAPIKey:         "key",
		SubmissionCap:       5,
		MaxImageBytes:       1 << 20,
		UploadTimeout:       20 * time.Second,
		FraudTimeout:        30 * time.Second,
		VerifyTimeout:       30 * time.Second,
		TriageSweepInterval: time.Minute,
		TriageStaleAfter:    5 * time.Minute,
		LoginRateLimit:      10,
		LoginRateWindow:     15 * time.Minute,
		LoginMaxFailures:    5,
		LoginLockoutWindow:  15 * time.Minute,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"insecure secret", func(c *Config) { c.JWTSecret = insecureJWTSecret }, "insecure default"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "too short"},
		{"missing ai key", func(c *Config) { c.GenAIAPIKey = "" }, "GENAI_API_KEY"},
		{"zero cap", func(c *Config) { c.SubmissionCap = 0 }, "SUBMISSION_CAP"},
		{"zero timeout", func(c *Config) { c.UploadTimeout = 0 }, "UPLOAD_TIMEOUT"},
		{"zero lockout window", func(c *Config) { c.LoginLockoutWindow = 0 }, "LOGIN_LOCKOUT_WINDOW"},
		{"zero login failures", func(c *Config) { c.LoginMaxFailures = 0 }, "LOGIN_MAX_FAILURES"},
		{"stale before fraud timeout", func(c *Config) { c.TriageStaleAfter = 10 * time.Second }, "TRIAGE_STALE_AFTER"},
		{"stale inside triage write window", func(c *Config) { c.TriageStaleAfter = 35 * time.Second }, "TRIAGE_STALE_AFTER"},
		{"stale just past triage write window", func(c *Config) { c.TriageStaleAfter = 41 * time.Second }, ""},
		{"insecure allowed", func(c *Config) {
			c.JWTSecret = insecureJWTSecret
			c.GenAIAPIKey = ""
			c.AllowInsecureDefaults = true
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DSN(t *testing.T) {
	c := &Config{PGUser: "u", PGPassword: "p", PGHost: "db", PGPort: 5432, PGDatabase: "arcade"}
	assert.Equal(t, "postgres://u:p@db:5432/arcade?sslmode=disable", c.DSN())

	c.DatabaseURL = "postgres://override"
	assert.Equal(t, "postgres://override", c.DSN())
}

func TestConfig_CORSOrigins(t *testing.T) {
	c := &Config{CORSAllowedOrigins: " https://a.test, ,https://b.test "}
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, c.CORSOrigins())
}

type fakeOutbox struct {
	rows      []domain.OutboxRow
	published []int64
}

func (f *fakeOutbox) Insert(_ context.Context, _ repository.DBTX, d domain.OutboxDraft) error {
	f.rows = append(f.rows, domain.OutboxRow{SeqID: int64(len(f.rows) + 1), OutboxDraft: d})
	return nil
}

func (f *fakeOutbox) FetchUnpublished(_ context.Context, _ repository.DBTX, limit int) ([]domain.OutboxRow, error) {
	done := make(map[int64]bool)
	for _, id := range f.published {
		done[id] = true
	}
	var out []domain.OutboxRow
	for _, r := range f.rows {
		if !done[r.SeqID] && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, _ repository.DBTX, ids []int64) error {
	f.published = append(f.published, ids...)
	return nil
}

type message struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	sent   []message
	failAt int
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	if p.failAt > 0 && len(p.sent)+1 == p.failAt {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, message{topic: topic, key: string(key), value: value})
	return nil
}

func seedOutbox(t *testing.T, n int) *fakeOutbox {
	t.Helper()
	ob := &fakeOutbox{}
	for i := 0; i < n; i++ {
		sub := &domain.ScoreSubmission{ID: uuid.New(), Score: int64(100 * (i + 1))}
		require.NoError(t, ob.Insert(context.Background(), nil, domain.NewSubmissionEvent(domain.EventSubmissionCreated, sub)))
	}
	return ob
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	ob := seedOutbox(t, 3)
	pub := &fakePublisher{}
	p := NewOutboxPoller(nil, ob, pub, time.Second, 10, noopLogger())

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{1, 2, 3}, ob.published)

	require.Len(t, pub.sent, 3)
	assert.Equal(t, "arcade.submission.created", pub.sent[0].topic)
	assert.Equal(t, ob.rows[0].AggregateID, pub.sent[0].key)

	var env OutboxMessage
	require.NoError(t, json.Unmarshal(pub.sent[0].value, &env))
	assert.Equal(t, "created", env.EventType)
	assert.Equal(t, ob.rows[0].EventID.String(), env.EventID)

	n, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxPoller_StopsAtFirstFailure(t *testing.T) {
	ob := seedOutbox(t, 3)
	pub := &fakePublisher{failAt: 2}
	p := NewOutboxPoller(nil, ob, pub, time.Second, 10, noopLogger())

	n, err := p.PollOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, ob.published)
}

func TestOutboxPoller_BatchSize(t *testing.T) {
	ob := seedOutbox(t, 5)
	p := NewOutboxPoller(nil, ob, &fakePublisher{}, time.Second, 2, noopLogger())

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestKafkaProducer_DisabledIsNoop(t *testing.T) {
	p := NewKafkaProducer("", true, noopLogger())
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Publish(context.Background(), "t", nil, []byte("x")))
	assert.NoError(t, p.Close())
}

func TestLeaderboardCache_DisabledAlwaysMisses(t *testing.T) {
	c, err := NewLeaderboardCache(context.Background(), "", time.Minute, noopLogger())
	require.NoError(t, err)

	require.NoError(t, c.Set(context.Background(), "ev", nil))
	_, ok, err := c.Get(context.Background(), "ev")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(context.Background()))
	assert.NoError(t, c.Close())
}

func TestLeaderboardKey(t *testing.T) {
	assert.Equal(t, "leaderboard:_all", leaderboardKey(""))
	assert.Equal(t, "leaderboard:spring-2026", leaderboardKey("spring-2026"))
}

func TestDefaultPublicBase(t *testing.T) {
	assert.Equal(t, "https://proofs.s3.eu-west-1.amazonaws.com",
		defaultPublicBase(&Config{S3Bucket: "proofs", S3Region: "eu-west-1"}))
	assert.Equal(t, "http://minio:9000/proofs",
		defaultPublicBase(&Config{S3Bucket: "proofs", S3Endpoint: "http://minio:9000/"}))
}
