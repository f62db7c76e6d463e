package storage

import (
	"context"
	"time"
)

//go:generate moq -out session_mock.go . SessionStorage

// Session is the locally persisted login state. Reads of domain records
// never need it; only sync rounds do.
type Session struct {
	ExpiresAt    time.Time `json:"expires_at"`
	OwnerID      string    `json:"owner_id"`
	Username     string    `json:"username"`
	RegionCode   string    `json:"region_code"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
}

// SessionStorage persists the login session across restarts.
type SessionStorage interface {
	// SaveSession stores or replaces the session.
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns the stored session.
	// Returns ErrSessionNotFound if nobody is logged in.
	GetSession(ctx context.Context) (*Session, error)

	// ClearSession removes the stored session.
	ClearSession(ctx context.Context) error
}
