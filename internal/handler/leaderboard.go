package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retroarcade/hiscore/internal/feed"
	"github.com/retroarcade/hiscore/internal/ranking"
	"github.com/retroarcade/hiscore/internal/service"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveBuffer     = 16
)

// BoardSource produces leaderboard snapshots.
type BoardSource interface {
	Boards(ctx context.Context, eventID string) ([]ranking.GameBoard, error)
	Compute(ctx context.Context, eventID string) ([]ranking.GameBoard, error)
}

// LiveMessage is the payload pushed to live leaderboard clients.
type LiveMessage struct {
	Event string              `json:"event"`
	Data  []ranking.GameBoard `json:"data"`
}

// LeaderboardHandler serves leaderboard snapshots and the live push stream.
type LeaderboardHandler struct {
	boards   BoardSource
	broker   *feed.Broker
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewLeaderboardHandler creates a new LeaderboardHandler. allowedOrigins
// restricts websocket upgrades; "*" accepts any origin.
func NewLeaderboardHandler(boards BoardSource, broker *feed.Broker, allowedOrigins []string, logger *slog.Logger) *LeaderboardHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &LeaderboardHandler{
		boards: boards,
		broker: broker,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Get handles GET /leaderboard?event=.
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	boards, err := h.boards.Boards(r.Context(), r.URL.Query().Get("event"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, boards)
}

// Live handles GET /leaderboard/live?event=. After the upgrade the client gets
// a snapshot immediately and a fresh one after every change that can move the
// leaderboard.
func (h *LeaderboardHandler) Live(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("event")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("leaderboard upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	changes, unsubscribe := h.broker.Subscribe(liveBuffer)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go h.readPump(conn, cancel)

	if err := h.push(ctx, conn, eventID); err != nil {
		return
	}

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(liveWriteWait))
				return
			}
			if !service.Relevant(c) {
				continue
			}
			drain(changes)
			if err := h.push(ctx, conn, eventID); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *LeaderboardHandler) push(ctx context.Context, conn *websocket.Conn, eventID string) error {
	boards, err := h.boards.Compute(ctx, eventID)
	if err != nil {
		h.logger.Error("live leaderboard compute failed", "error", err)
		return nil
	}
	conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(LiveMessage{Event: "leaderboard", Data: boards})
}

// readPump consumes control frames and cancels the session when the client goes away.
func (h *LeaderboardHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("live leaderboard client error", "error", err)
			}
			return
		}
	}
}

// drain discards queued changes; one recompute covers them all.
func drain(changes <-chan feed.Change) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
