// Package ranking turns a snapshot of score submissions into per-game leaderboards.
package ranking

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
)

// Score is one submission as shown on a leaderboard.
type Score struct {
	SubmissionID uuid.UUID               `json:"submission_id"`
	Score        int64                   `json:"score"`
	Status       domain.SubmissionStatus `json:"status"`
	ImageURL     *string                 `json:"image_url,omitempty"`
	SubmittedAt  time.Time               `json:"submitted_at"`
}

// Entry is a player's position on a game board.
type Entry struct {
	Rank         int       `json:"rank"`
	PlayerID     uuid.UUID `json:"player_id"`
	PlayerName   string    `json:"player_name"`
	PlayerHandle string    `json:"player_handle,omitempty"`
	Best         Score     `json:"best"`
	Others       []Score   `json:"others"`
}

// GameBoard is the ranked list for one game.
type GameBoard struct {
	GameID   uuid.UUID `json:"game_id"`
	GameName string    `json:"game_name"`
	Entries  []Entry   `json:"entries"`
}

// Options controls which submissions take part in the aggregation.
type Options struct {
	// EventID restricts the snapshot to a single event when non-empty.
	EventID string
	// ExcludeRejected drops rejected submissions before ranking.
	ExcludeRejected bool
}

// Aggregate groups submissions by game and player, picks each player's best
// score and orders players by it. Inputs are not modified.
//
// Ties are broken deterministically: among equal scores the earliest
// submission is a player's best, and among players with equal bests the one
// who reached it first ranks higher (player id as last resort).
func Aggregate(subs []domain.ScoreSubmission, games []domain.Game, opts Options) []GameBoard {
	catalog := make(map[uuid.UUID]string, len(games))
	for _, g := range games {
		catalog[g.ID] = g.Name
	}

	type playerBucket struct {
		id     uuid.UUID
		name   string
		handle string
		scores []Score
	}
	type gameBucket struct {
		id      uuid.UUID
		name    string
		players map[uuid.UUID]*playerBucket
	}

	byGame := make(map[uuid.UUID]*gameBucket)
	for i := range subs {
		s := &subs[i]
		if opts.EventID != "" && s.EventID != opts.EventID {
			continue
		}
		if opts.ExcludeRejected && s.Status == domain.StatusRejected {
			continue
		}

		gb, ok := byGame[s.GameID]
		if !ok {
			name, known := catalog[s.GameID]
			if !known {
				name = s.GameName
			}
			gb = &gameBucket{id: s.GameID, name: name, players: make(map[uuid.UUID]*playerBucket)}
			byGame[s.GameID] = gb
		}

		pb, ok := gb.players[s.PlayerID]
		if !ok {
			pb = &playerBucket{id: s.PlayerID, name: s.PlayerName, handle: s.PlayerHandle}
			gb.players[s.PlayerID] = pb
		}
		pb.scores = append(pb.scores, Score{
			SubmissionID: s.ID,
			Score:        s.Score,
			Status:       s.Status,
			ImageURL:     s.ImageURL,
			SubmittedAt:  s.SubmittedAt,
		})
	}

	boards := make([]GameBoard, 0, len(byGame))
	for _, gb := range byGame {
		entries := make([]Entry, 0, len(gb.players))
		for _, pb := range gb.players {
			sort.SliceStable(pb.scores, func(i, j int) bool {
				return scoreLess(pb.scores[i], pb.scores[j])
			})
			entries = append(entries, Entry{
				PlayerID:     pb.id,
				PlayerName:   pb.name,
				PlayerHandle: pb.handle,
				Best:         pb.scores[0],
				Others:       append([]Score{}, pb.scores[1:]...),
			})
		}
		sort.Slice(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if a.Best.Score != b.Best.Score {
				return a.Best.Score > b.Best.Score
			}
			if !a.Best.SubmittedAt.Equal(b.Best.SubmittedAt) {
				return a.Best.SubmittedAt.Before(b.Best.SubmittedAt)
			}
			return a.PlayerID.String() < b.PlayerID.String()
		})
		for i := range entries {
			entries[i].Rank = i + 1
		}

		boards = append(boards, GameBoard{GameID: gb.id, GameName: gb.name, Entries: entries})
	}

	sort.Slice(boards, func(i, j int) bool {
		ni, nj := strings.ToLower(boards[i].GameName), strings.ToLower(boards[j].GameName)
		if ni != nj {
			return ni < nj
		}
		return boards[i].GameID.String() < boards[j].GameID.String()
	})

	return boards
}

// scoreLess orders a player's scores: higher first, then earlier, then by id.
func scoreLess(a, b Score) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.SubmissionID.String() < b.SubmissionID.String()
}

// Board returns the board for a single game, or nil when it has no entries.
func Board(boards []GameBoard, gameID uuid.UUID) *GameBoard {
	for i := range boards {
		if boards[i].GameID == gameID {
			return &boards[i]
		}
	}
	return nil
}
