//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/test/integration/testutil"
)

func TestAdmin_LoginAndAccess(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.Do(http.MethodGet, "/admin/settings", "", nil)
	testutil.AssertErrorCode(t, resp, http.StatusUnauthorized, domain.CodeUnauthorized)

	token := env.AdminToken()

	resp = env.POST("/auth/admin/login", map[string]string{
		"email":    testutil.TestAdminEmail,
		"password": "not-the-password",
	})
	testutil.AssertErrorCode(t, resp, http.StatusUnauthorized, domain.CodeUnauthorized)

	resp = env.Do(http.MethodPut, "/admin/settings", token, map[string]string{
		"playlist_url": "https://music.example.com/arcade",
		"event_id":     "spring-2026",
		"event_name":   "Spring Showdown",
	})
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.GET("/media")
	testutil.AssertStatus(t, resp, http.StatusOK)
	var media map[string]string
	testutil.DecodeJSON(t, resp, &media)
	assert.Equal(t, "https://music.example.com/arcade", media["playlist_url"])
	assert.Equal(t, "spring-2026", media["event_id"])
}

func TestAdmin_RevokedAdminForbidden(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.AdminToken()

	_, err := env.Pool.Exec(context.Background(), "UPDATE admins SET active = false WHERE email = $1", testutil.TestAdminEmail)
	require.NoError(t, err)

	resp := env.Do(http.MethodGet, "/admin/submissions", token, nil)
	testutil.AssertErrorCode(t, resp, http.StatusForbidden, domain.CodeForbidden)
}

func TestAdmin_Moderation(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.AdminToken()
	game := env.CreateGame(token, "Galaga")
	ada := env.RegisterPlayer("Ada")

	id := env.SubmitScore(ada.ID, game.ID, "4200")
	env.Services.Submissions.Wait()
	path := "/admin/submissions/" + id.String()

	resp := env.Do(http.MethodPatch, path+"/score", token, map[string]any{"score": 4300})
	testutil.AssertStatus(t, resp, http.StatusOK)
	var sub domain.ScoreSubmission
	testutil.DecodeJSON(t, resp, &sub)
	assert.Equal(t, int64(4300), sub.Score)

	resp = env.Do(http.MethodPatch, path+"/status", token, map[string]string{"status": "approved"})
	testutil.AssertStatus(t, resp, http.StatusOK)
	testutil.DecodeJSON(t, resp, &sub)
	assert.Equal(t, domain.StatusApproved, sub.Status)

	resp = env.Do(http.MethodPatch, path+"/status", token, map[string]string{"status": "maybe"})
	testutil.AssertErrorCode(t, resp, http.StatusBadRequest, domain.CodeValidation)

	resp = env.Do(http.MethodDelete, path, token, nil)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.Do(http.MethodDelete, path, token, nil)
	testutil.AssertErrorCode(t, resp, http.StatusNotFound, domain.CodeNotFound)

	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env.Pool, string(domain.EventSubmissionScoreEdited)))
	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env.Pool, string(domain.EventSubmissionStatusChanged)))
	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env.Pool, string(domain.EventSubmissionDeleted)))
}

func TestAdmin_VerifyImage(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.AdminToken()
	game := env.CreateGame(token, "Galaga")
	ada := env.RegisterPlayer("Ada")

	id := env.SubmitScore(ada.ID, game.ID, "4200")
	env.Services.Submissions.Wait()

	resp := env.Do(http.MethodPost, "/admin/submissions/"+id.String()+"/verify", token, nil)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var verdict domain.VerificationVerdict
	testutil.DecodeJSON(t, resp, &verdict)
	assert.True(t, verdict.IsVerified)
	require.NotNil(t, verdict.ImageDetectedScore)
	assert.Equal(t, float64(4200), *verdict.ImageDetectedScore)

	calls := env.AI.VerifyCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(4200), calls[0].EnteredScore)
	assert.Equal(t, "Galaga", calls[0].GameName)
	assert.Contains(t, calls[0].Image, "data:image/png;base64,")

	// Verification never changes the submission.
	sub := env.FindSubmission(token, id)
	assert.Equal(t, domain.StatusPending, sub.Status)
}

func TestAdmin_VerifyMissingImageIsUpstreamError(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token := env.AdminToken()
	game := env.CreateGame(token, "Galaga")
	ada := env.RegisterPlayer("Ada")

	id := env.SubmitScore(ada.ID, game.ID, "4200")
	env.Services.Submissions.Wait()
	sub := env.FindSubmission(token, id)
	require.NotNil(t, sub.ImageURL)
	env.Store.Drop(*sub.ImageURL)

	resp := env.Do(http.MethodPost, "/admin/submissions/"+id.String()+"/verify", token, nil)
	testutil.AssertErrorCode(t, resp, http.StatusBadGateway, domain.CodeUpstream)
	assert.Empty(t, env.AI.VerifyCalls())
}

func TestAdmin_LoginLockout(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.AdminToken()

	for i := 0; i < env.Config.LoginMaxFailures; i++ {
		resp := env.POST("/auth/admin/login", map[string]string{
			"email":    testutil.TestAdminEmail,
			"password": "not-the-password",
		})
		testutil.AssertErrorCode(t, resp, http.StatusUnauthorized, domain.CodeUnauthorized)
	}

	resp := env.POST("/auth/admin/login", map[string]string{
		"email":    testutil.TestAdminEmail,
		"password": testutil.TestAdminPassword,
	})
	testutil.AssertErrorCode(t, resp, http.StatusTooManyRequests, domain.CodeLocked)

	var failures int
	err := env.Pool.QueryRow(context.Background(),
		"SELECT count(*) FROM login_attempts WHERE email = $1 AND NOT success", testutil.TestAdminEmail).Scan(&failures)
	require.NoError(t, err)
	assert.Equal(t, env.Config.LoginMaxFailures, failures)
}
