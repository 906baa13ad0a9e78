//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DecodeJSON decodes the response body into dst and closes it.
func DecodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

// AssertStatus fails the test when the status differs, printing the body.
func AssertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}

// AssertErrorCode checks the status and the error code of an error response.
func AssertErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	AssertStatus(t, resp, status)
	var body struct {
		Code string `json:"code"`
	}
	DecodeJSON(t, resp, &body)
	assert.Equal(t, code, body.Code)
}

// CountOutboxEvents counts outbox rows of eventType.
func CountOutboxEvents(t *testing.T, pool *pgxpool.Pool, eventType string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var n int
	err := pool.QueryRow(ctx, "SELECT count(*) FROM event_outbox WHERE event_type = $1", eventType).Scan(&n)
	require.NoError(t, err)
	return n
}
