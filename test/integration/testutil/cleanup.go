//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates every application table.
func (env *TestEnv) CleanAll() {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := env.Pool.Exec(ctx, `
		TRUNCATE score_submissions, players, games, offers, admins, event_outbox, app_config, login_attempts`)
	if err != nil {
		env.t.Fatalf("clean tables: %v", err)
	}
}
