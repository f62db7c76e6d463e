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

func testOwner(username string) *models.Owner {
	return &models.Owner{
		ID:           "owner-" + username,
		Username:     username,
		PasswordHash: "$2a$10$fakehash",
		RegionCode:   "east-africa",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestOwners_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	owner := testOwner("amina_k")
	require.NoError(t, s.CreateOwner(ctx, owner))

	byName, err := s.GetOwnerByUsername(ctx, "amina_k")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, byName.ID)
	assert.Equal(t, "east-africa", byName.RegionCode)
	assert.True(t, byName.LastLoginAt.IsZero())

	byID, err := s.GetOwnerByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "amina_k", byID.Username)
}

func TestOwners_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	require.NoError(t, s.CreateOwner(ctx, testOwner("amina_k")))

	dup := testOwner("amina_k")
	dup.ID = "owner-other"
	err := s.CreateOwner(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrOwnerExists)
}

func TestOwners_NotFound(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.GetOwnerByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrOwnerNotFound)

	_, err = s.GetOwnerByID(ctx, "owner-nobody")
	assert.ErrorIs(t, err, storage.ErrOwnerNotFound)

	err = s.UpdateLastLogin(ctx, "owner-nobody", time.Now())
	assert.ErrorIs(t, err, storage.ErrOwnerNotFound)
}

func TestOwners_UpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	owner := testOwner("amina_k")
	require.NoError(t, s.CreateOwner(ctx, owner))

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpdateLastLogin(ctx, owner.ID, at))

	got, err := s.GetOwnerByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, at.Unix(), got.LastLoginAt.Unix())
}
