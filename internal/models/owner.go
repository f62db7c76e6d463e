package models

import "time"

// Owner is a farmer account in the server-side registry. The registry is
// the source of truth for the region a record may legally reside in.
type Owner struct {
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
	ID          string    `json:"id"`       // UUID
	Username    string    `json:"username"` //
	// PasswordHash is the bcrypt hash of the owner's password.
	PasswordHash string `json:"-"`
	// RegionCode is fixed at registration and never changes.
	RegionCode string `json:"region_code"`
}

// RefreshToken is a long-lived token persisted server-side so access
// tokens can be re-issued without re-entering credentials.
type RefreshToken struct {
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Token     string    `json:"token"`
	OwnerID   string    `json:"owner_id"`
}

// Expired reports whether the refresh token is past its expiry.
func (t *RefreshToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}
