package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisync/agrisync/internal/client/storage"
)

func TestSession_SaveGetClear(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	session := &storage.Session{
		OwnerID:      "owner-1",
		Username:     "amina_k",
		RegionCode:   "east-africa",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(15 * time.Minute).UTC(),
	}
	require.NoError(t, s.SaveSession(ctx, session))

	got, err := s.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "amina_k", got.Username)
	assert.Equal(t, "east-africa", got.RegionCode)

	require.NoError(t, s.ClearSession(ctx))

	_, err = s.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}
