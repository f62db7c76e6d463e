package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisync/agrisync/internal/models"
	"github.com/agrisync/agrisync/internal/server/storage"
)

func testToken(value, ownerID string, ttl time.Duration) *models.RefreshToken {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.RefreshToken{
		Token:     value,
		OwnerID:   ownerID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func TestTokens_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	token := testToken("tok-1", "owner-1", time.Hour)
	require.NoError(t, s.SaveRefreshToken(ctx, token))

	got, err := s.GetRefreshToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.False(t, got.Expired())

	require.NoError(t, s.DeleteRefreshToken(ctx, "tok-1"))

	_, err = s.GetRefreshToken(ctx, "tok-1")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	err = s.DeleteRefreshToken(ctx, "tok-1")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestTokens_DeleteOwnerTokens(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	require.NoError(t, s.SaveRefreshToken(ctx, testToken("tok-1", "owner-1", time.Hour)))
	require.NoError(t, s.SaveRefreshToken(ctx, testToken("tok-2", "owner-1", time.Hour)))
	require.NoError(t, s.SaveRefreshToken(ctx, testToken("tok-3", "owner-2", time.Hour)))

	n, err := s.DeleteOwnerTokens(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.GetRefreshToken(ctx, "tok-3")
	assert.NoError(t, err, "other owner's token survives")
}

func TestTokens_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	require.NoError(t, s.SaveRefreshToken(ctx, testToken("tok-live", "owner-1", time.Hour)))
	require.NoError(t, s.SaveRefreshToken(ctx, testToken("tok-dead", "owner-1", -time.Hour)))

	n, err := s.DeleteExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetRefreshToken(ctx, "tok-live")
	assert.NoError(t, err)
	_, err = s.GetRefreshToken(ctx, "tok-dead")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}
