package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/retroarcade/hiscore/internal/domain"
)

const insecureJWTSecret = "change-me-in-production"

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL    string `env:"DATABASE_URL"`
	PGHost         string `env:"PGHOST" envDefault:"localhost"`
	PGPort         int    `env:"PGPORT" envDefault:"5432"`
	PGUser         string `env:"PGUSER" envDefault:"arcade"`
	PGPassword     string `env:"PGPASSWORD" envDefault:"arcade"`
	PGDatabase     string `env:"PGDATABASE" envDefault:"arcade"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	// Redis leaderboard cache; empty URL disables caching.
	RedisURL       string        `env:"REDIS_URL"`
	LeaderboardTTL time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"30s"`

	// JWT
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAdminExpiry time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Bootstrap admin, upserted at startup when both are set.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// Admin sign-in throttling: per client IP on the route, per email in the database.
	LoginRateLimit     int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	LoginRateWindow    time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"15m"`
	LoginMaxFailures   int           `env:"LOGIN_MAX_FAILURES" envDefault:"5"`
	LoginLockoutWindow time.Duration `env:"LOGIN_LOCKOUT_WINDOW" envDefault:"15m"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`
	// TrustProxyHeaders takes client IPs from X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Kafka
	KafkaBrokers       string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// Object storage (S3 compatible)
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Region          string `env:"S3_REGION" envDefault:"auto"`
	S3Bucket          string `env:"S3_BUCKET" envDefault:"score-proofs"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`

	// Generative AI functions
	GenAIBaseURL string `env:"GENAI_BASE_URL" envDefault:"http://localhost:8787"`
	GenAIAPIKey  string `env:"GENAI_API_KEY"`

	// Submissions
	SubmissionCap        int           `env:"SUBMISSION_CAP" envDefault:"5"`
	MaxImageBytes        int64         `env:"MAX_IMAGE_BYTES" envDefault:"10485760"`
	UploadTimeout        time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"20s"`
	FraudTimeout         time.Duration `env:"FRAUD_TIMEOUT" envDefault:"30s"`
	VerifyTimeout        time.Duration `env:"VERIFY_TIMEOUT" envDefault:"30s"`
	SubmissionRateLimit  int           `env:"SUBMISSION_RATE_LIMIT" envDefault:"10"`
	SubmissionRateWindow time.Duration `env:"SUBMISSION_RATE_WINDOW" envDefault:"1m"`

	// Triage sweeper
	TriageSweepInterval time.Duration `env:"TRIAGE_SWEEP_INTERVAL" envDefault:"1m"`
	TriageStaleAfter    time.Duration `env:"TRIAGE_STALE_AFTER" envDefault:"5m"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig reads an optional .env file and parses environment variables into a Config.
// Variables already present in the environment win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure or inconsistent configuration.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass the secret checks (local dev only).
func (c *Config) Validate() error {
	if c.SubmissionCap < 1 {
		return fmt.Errorf("SUBMISSION_CAP must be at least 1, got %d", c.SubmissionCap)
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive")
	}
	for name, d := range map[string]time.Duration{
		"UPLOAD_TIMEOUT":        c.UploadTimeout,
		"FRAUD_TIMEOUT":         c.FraudTimeout,
		"VERIFY_TIMEOUT":        c.VerifyTimeout,
		"TRIAGE_SWEEP_INTERVAL": c.TriageSweepInterval,
		"TRIAGE_STALE_AFTER":    c.TriageStaleAfter,
		"LOGIN_RATE_WINDOW":     c.LoginRateWindow,
		"LOGIN_LOCKOUT_WINDOW":  c.LoginLockoutWindow,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.LoginRateLimit < 1 || c.LoginMaxFailures < 1 {
		return fmt.Errorf("LOGIN_RATE_LIMIT and LOGIN_MAX_FAILURES must be at least 1")
	}
	// A live check may still be writing until FRAUD_TIMEOUT plus the write bound.
	if minStale := c.FraudTimeout + domain.TriageWriteTimeout; c.TriageStaleAfter <= minStale {
		return fmt.Errorf("TRIAGE_STALE_AFTER (%s) must exceed FRAUD_TIMEOUT plus %s (%s)",
			c.TriageStaleAfter, domain.TriageWriteTimeout, minStale)
	}

	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == insecureJWTSecret {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.GenAIAPIKey == "" {
		return fmt.Errorf("GENAI_API_KEY is required")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// CORSOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
