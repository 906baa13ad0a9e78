package domain

import (
	"time"

	"github.com/google/uuid"
)

// Player is a registered event participant.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Handle    string    `json:"handle,omitempty"`
	GroupSize int       `json:"group_size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Game is an arcade cabinet players can submit scores for.
type Game struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppConfig is the singleton event configuration row.
type AppConfig struct {
	PlaylistURL string    `json:"playlist_url"`
	EventID     string    `json:"event_id"`
	EventName   string    `json:"event_name"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Admin is a member of the admins table. Membership means Active is true.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
