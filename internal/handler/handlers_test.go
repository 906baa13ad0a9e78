package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/feed"
	"github.com/retroarcade/hiscore/internal/ranking"
	"github.com/retroarcade/hiscore/internal/service"
)

// --- Submission Tests ---

type fakeSubmitter struct {
	got    service.SubmitInput
	result *service.SubmitResult
	err    error
}

func (f *fakeSubmitter) Submit(_ context.Context, in service.SubmitInput) (*service.SubmitResult, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func multipartRequest(t *testing.T, fields map[string]string, image []byte, imageType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="score.png"`)
		hdr.Set("Content-Type", imageType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/submissions", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestSubmissionHandler_Submit(t *testing.T) {
	id := uuid.New()
	sub := &fakeSubmitter{result: &service.SubmitResult{SubmissionID: id, Status: domain.StatusPending}}
	h := NewSubmissionHandler(sub, 1<<20, noopLogger())

	r := multipartRequest(t, map[string]string{
		"player_name": "Ada",
		"game_name":   "Galaga",
		"score":       "12,500",
	}, []byte{0x89, 'P', 'N', 'G'}, "image/png")
	w := httptest.NewRecorder()
	h.Submit(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Ada", sub.got.PlayerName)
	assert.Equal(t, "Galaga", sub.got.GameName)
	assert.Equal(t, "12,500", sub.got.Score)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, sub.got.Image)
	assert.Equal(t, "image/png", sub.got.ContentType)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, id.String(), body["submission_id"])
}

func TestSubmissionHandler_Errors(t *testing.T) {
	t.Run("missing image is passed through for validation", func(t *testing.T) {
		sub := &fakeSubmitter{err: domain.ErrValidation("a photo of the score is required")}
		w := httptest.NewRecorder()
		NewSubmissionHandler(sub, 1<<20, noopLogger()).Submit(w, multipartRequest(t, map[string]string{"score": "1"}, nil, ""))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, sub.got.Image)
	})

	t.Run("capacity reached", func(t *testing.T) {
		sub := &fakeSubmitter{err: domain.ErrCapacity(5)}
		w := httptest.NewRecorder()
		NewSubmissionHandler(sub, 1<<20, noopLogger()).Submit(w, multipartRequest(t, map[string]string{"score": "1"}, []byte("x"), "image/png"))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "CAPACITY_REACHED")
	})

	t.Run("not multipart", func(t *testing.T) {
		sub := &fakeSubmitter{}
		r := httptest.NewRequest(http.MethodPost, "/submissions", strings.NewReader(`{"score":1}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		NewSubmissionHandler(sub, 1<<20, noopLogger()).Submit(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized upload", func(t *testing.T) {
		sub := &fakeSubmitter{}
		big := bytes.Repeat([]byte{1}, 2048)
		w := httptest.NewRecorder()
		NewSubmissionHandler(sub, 16, noopLogger()).Submit(w, multipartRequest(t, map[string]string{"score": "1"}, big, "image/png"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, sub.got.Score, "service must not be reached")
	})
}

// --- Player Tests ---

type fakePlayers struct {
	players []domain.Player
	subs    map[uuid.UUID][]domain.ScoreSubmission
	err     error
}

func (f *fakePlayers) Register(_ context.Context, in service.PlayerInput) (*domain.Player, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := domain.Player{ID: uuid.New(), Name: in.Name, GroupSize: 1}
	f.players = append(f.players, p)
	return &p, nil
}

func (f *fakePlayers) List(context.Context) ([]domain.Player, error) {
	return f.players, nil
}

func (f *fakePlayers) Submissions(_ context.Context, id uuid.UUID) ([]domain.ScoreSubmission, error) {
	subs, ok := f.subs[id]
	if !ok {
		return nil, domain.ErrNotFound("player", id.String())
	}
	return subs, nil
}

func TestPlayerHandler(t *testing.T) {
	players := &fakePlayers{subs: map[uuid.UUID][]domain.ScoreSubmission{}}
	h := NewPlayerHandler(players)
	router := chi.NewRouter()
	router.Post("/players", h.Register)
	router.Get("/players", h.List)
	router.Get("/players/{id}/submissions", h.Submissions)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}

	t.Run("register", func(t *testing.T) {
		w := do(http.MethodPost, "/players", `{"name":"Ada"}`)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Len(t, players.players, 1)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := do(http.MethodPost, "/players", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate name", func(t *testing.T) {
		players.err = domain.ErrConflict("a player with that name already exists")
		defer func() { players.err = nil }()
		w := do(http.MethodPost, "/players", `{"name":"ada"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("submissions of unknown player", func(t *testing.T) {
		w := do(http.MethodGet, "/players/"+uuid.NewString()+"/submissions", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("submissions with bad id", func(t *testing.T) {
		w := do(http.MethodGet, "/players/not-a-uuid/submissions", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// --- Offer and Media Tests ---

type fakeOffers struct{ currentOnly *bool }

func (f *fakeOffers) ListActive(_ context.Context, currentOnly bool) ([]domain.Offer, error) {
	f.currentOnly = &currentOnly
	return []domain.Offer{}, nil
}

func TestOfferHandler_List(t *testing.T) {
	tests := []struct {
		query      string
		wantStatus int
		wantNow    bool
	}{
		{"", http.StatusOK, false},
		{"?now=true", http.StatusOK, true},
		{"?now=false", http.StatusOK, false},
		{"?now=soon", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			offers := &fakeOffers{}
			w := httptest.NewRecorder()
			NewOfferHandler(offers).List(w, httptest.NewRequest(http.MethodGet, "/offers"+tt.query, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, offers.currentOnly)
				assert.Equal(t, tt.wantNow, *offers.currentOnly)
			}
		})
	}
}

type fakeSettings struct{ cfg domain.AppConfig }

func (f *fakeSettings) Get(context.Context) (*domain.AppConfig, error) {
	c := f.cfg
	return &c, nil
}

func TestMediaHandler_Get(t *testing.T) {
	settings := &fakeSettings{cfg: domain.AppConfig{PlaylistURL: "https://youtube.test/list", EventID: "spring-2026", EventName: "Spring Showdown"}}
	w := httptest.NewRecorder()
	NewMediaHandler(settings).Get(w, httptest.NewRequest(http.MethodGet, "/media", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "https://youtube.test/list", body["playlist_url"])
	assert.Equal(t, "Spring Showdown", body["event_name"])
}

// --- Leaderboard Tests ---

type fakeBoards struct {
	mu       sync.Mutex
	boards   []ranking.GameBoard
	events   []string
	computes int
}

func (f *fakeBoards) set(boards []ranking.GameBoard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boards = boards
}

func (f *fakeBoards) Boards(_ context.Context, eventID string) ([]ranking.GameBoard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventID)
	return f.boards, nil
}

func (f *fakeBoards) Compute(_ context.Context, eventID string) ([]ranking.GameBoard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.computes++
	return f.boards, nil
}

func boardFor(game string, score int64) []ranking.GameBoard {
	return []ranking.GameBoard{{
		GameID:   uuid.New(),
		GameName: game,
		Entries: []ranking.Entry{{
			Rank: 1, PlayerID: uuid.New(), PlayerName: "Ada",
			Best: ranking.Score{SubmissionID: uuid.New(), Score: score, Status: domain.StatusPending},
		}},
	}}
}

func TestLeaderboardHandler_Get(t *testing.T) {
	boards := &fakeBoards{boards: boardFor("Galaga", 100)}
	h := NewLeaderboardHandler(boards, feed.NewBroker(noopLogger()), []string{"*"}, noopLogger())

	w := httptest.NewRecorder()
	h.Get(w, httptest.NewRequest(http.MethodGet, "/leaderboard?event=spring-2026", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"spring-2026"}, boards.events)
	var got []ranking.GameBoard
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(100), got[0].Entries[0].Best.Score)
}

func TestLeaderboardHandler_Live(t *testing.T) {
	boards := &fakeBoards{boards: boardFor("Galaga", 100)}
	broker := feed.NewBroker(noopLogger())
	h := NewLeaderboardHandler(boards, broker, []string{"*"}, noopLogger())

	srv := httptest.NewServer(http.HandlerFunc(h.Live))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"?event=spring-2026", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg LiveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "leaderboard", msg.Event)
	assert.Equal(t, int64(100), msg.Data[0].Entries[0].Best.Score)

	require.Eventually(t, func() bool { return broker.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	// Changes to unrelated tables are ignored; the next push reflects the new score.
	broker.Publish(feed.Change{Table: "players", Op: "insert"})
	boards.set(boardFor("Galaga", 250))
	broker.Publish(feed.Change{Table: "score_submissions", Op: "insert", ID: uuid.NewString()})

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, int64(250), msg.Data[0].Entries[0].Best.Score)

	conn.Close()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLeaderboardHandler_LiveRejectsForeignOrigin(t *testing.T) {
	h := NewLeaderboardHandler(&fakeBoards{}, feed.NewBroker(noopLogger()), []string{"https://scores.arcade.test"}, noopLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.Live))
	defer srv.Close()

	hdr := http.Header{}
	hdr.Set("Origin", "https://evil.test")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), hdr)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// --- Auth Tests ---

type fakeAuthenticator struct {
	got service.LoginInput
	err error
}

func (f *fakeAuthenticator) Login(_ context.Context, in service.LoginInput) (*service.LoginResult, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.LoginResult{Token: "tok", Email: in.Email}, nil
}

func TestAdminLogin(t *testing.T) {
	t.Run("passes client address to the lockout", func(t *testing.T) {
		auth := &fakeAuthenticator{}
		r := httptest.NewRequest(http.MethodPost, "/auth/admin/login",
			strings.NewReader(`{"email":"boss@arcade.test","password":"pw","IP":"6.6.6.6"}`))
		r.RemoteAddr = "10.1.2.3:5555"
		w := httptest.NewRecorder()
		NewAuthHandler(auth).AdminLogin(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "10.1.2.3", auth.got.IP)
		assert.Equal(t, "boss@arcade.test", auth.got.Email)
	})

	t.Run("locked account", func(t *testing.T) {
		auth := &fakeAuthenticator{err: domain.ErrAccountLocked("too many failed login attempts, try again later")}
		r := httptest.NewRequest(http.MethodPost, "/auth/admin/login",
			strings.NewReader(`{"email":"boss@arcade.test","password":"pw"}`))
		w := httptest.NewRecorder()
		NewAuthHandler(auth).AdminLogin(w, r)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), domain.CodeLocked)
	})
}
