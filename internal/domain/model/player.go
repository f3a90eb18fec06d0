package model

import "time"

// Player is a registered identity. DisplayName is the username shown in
// leaderboards; PasswordHash never leaves the server.
type Player struct {
	ID           string    `json:"uuid"`
	DisplayName  string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TokenKind separates short-lived access tokens from refresh tokens.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Session is an opaque bearer token bound to a player.
type Session struct {
	Token     string
	PlayerID  string
	Kind      TokenKind
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still authenticate at now.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
