package storage

import (
	"context"

	"github.com/agrisync/agrisync/internal/models"
)

//go:generate moq -out tokens_mock.go . TokenStorage

// TokenStorage persists refresh tokens so access tokens can be re-issued
// without credentials.
type TokenStorage interface {
	// SaveRefreshToken stores a refresh token, replacing any token with
	// the same value.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error

	// GetRefreshToken retrieves a refresh token by value.
	// Returns ErrTokenNotFound if it does not exist.
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// DeleteRefreshToken removes a refresh token by value.
	// Returns ErrTokenNotFound if it does not exist.
	DeleteRefreshToken(ctx context.Context, token string) error

	// DeleteOwnerTokens removes all refresh tokens for an owner and
	// returns how many were deleted.
	DeleteOwnerTokens(ctx context.Context, ownerID string) (int, error)

	// DeleteExpiredTokens removes all expired tokens and returns how
	// many were deleted.
	DeleteExpiredTokens(ctx context.Context) (int, error)
}
