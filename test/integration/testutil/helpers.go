//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
)

// PNG is the smallest payload http.DetectContentType reports as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// Submission holds the form fields for POST /submissions.
type Submission struct {
	PlayerID   string
	PlayerName string
	GameID     string
	GameName   string
	Score      string
	Image      []byte
}

// Do sends a JSON request with an optional bearer token.
func (env *TestEnv) Do(method, path, token string, body any) *http.Response {
	env.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			env.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, env.Server.URL+path, reader)
	if err != nil {
		env.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// GET sends an unauthenticated GET.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodGet, path, "", nil)
}

// POST sends an unauthenticated JSON POST.
func (env *TestEnv) POST(path string, body any) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodPost, path, "", body)
}

// Submit posts a multipart score submission.
func (env *TestEnv) Submit(s Submission) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"player_id":   s.PlayerID,
		"player_name": s.PlayerName,
		"game_id":     s.GameID,
		"game_name":   s.GameName,
		"score":       s.Score,
	}
	for k, v := range fields {
		if v != "" {
			mw.WriteField(k, v)
		}
	}
	if s.Image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="score.png"`)
		h.Set("Content-Type", http.DetectContentType(s.Image))
		part, err := mw.CreatePart(h)
		if err != nil {
			env.t.Fatalf("create image part: %v", err)
		}
		part.Write(s.Image)
	}
	mw.Close()

	resp, err := http.Post(env.Server.URL+"/submissions", mw.FormDataContentType(), &buf)
	if err != nil {
		env.t.Fatalf("POST /submissions: %v", err)
	}
	return resp
}

// SubmitScore submits score for an existing player and game and returns the new submission id.
func (env *TestEnv) SubmitScore(playerID, gameID uuid.UUID, score string) uuid.UUID {
	env.t.Helper()
	resp := env.Submit(Submission{PlayerID: playerID.String(), GameID: gameID.String(), Score: score, Image: PNG})
	AssertStatus(env.t, resp, http.StatusCreated)
	var out struct {
		SubmissionID uuid.UUID `json:"submission_id"`
	}
	DecodeJSON(env.t, resp, &out)
	return out.SubmissionID
}

// AdminToken bootstraps the test admin and logs in through the API.
func (env *TestEnv) AdminToken() string {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := env.Services.AdminAuth.EnsureAdmin(ctx, TestAdminEmail, TestAdminPassword, "Ops"); err != nil {
		env.t.Fatalf("ensure admin: %v", err)
	}

	resp := env.POST("/auth/admin/login", map[string]string{
		"email":    TestAdminEmail,
		"password": TestAdminPassword,
	})
	AssertStatus(env.t, resp, http.StatusOK)
	var out struct {
		Token string `json:"token"`
	}
	DecodeJSON(env.t, resp, &out)
	return out.Token
}

// CreateGame adds an active game through the admin API.
func (env *TestEnv) CreateGame(token, name string) domain.Game {
	env.t.Helper()
	resp := env.Do(http.MethodPost, "/admin/games", token, map[string]string{"name": name})
	AssertStatus(env.t, resp, http.StatusCreated)
	var g domain.Game
	DecodeJSON(env.t, resp, &g)
	return g
}

// RegisterPlayer registers a player through the public API.
func (env *TestEnv) RegisterPlayer(name string) domain.Player {
	env.t.Helper()
	resp := env.POST("/players", map[string]string{"name": name})
	AssertStatus(env.t, resp, http.StatusCreated)
	var p domain.Player
	DecodeJSON(env.t, resp, &p)
	return p
}

// FindSubmission reads a submission's current state from the admin list.
func (env *TestEnv) FindSubmission(token string, id uuid.UUID) domain.ScoreSubmission {
	env.t.Helper()
	resp := env.Do(http.MethodGet, "/admin/submissions?limit=500", token, nil)
	AssertStatus(env.t, resp, http.StatusOK)
	var subs []domain.ScoreSubmission
	DecodeJSON(env.t, resp, &subs)
	for _, s := range subs {
		if s.ID == id {
			return s
		}
	}
	env.t.Fatalf("submission %s not found", id)
	return domain.ScoreSubmission{}
}
