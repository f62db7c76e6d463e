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

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(ownerID, recordID string, version int64) *models.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Record{
		RecordID:   recordID,
		OwnerID:    ownerID,
		Kind:       models.KindFarm,
		RegionCode: "east-africa",
		DeviceID:   "device-1",
		Payload:    models.Payload{"name": "hill farm", "farm_type": "crop"},
		Version:    version,
		Clock:      version,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestRecords_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	record := testRecord("owner-1", "rec-1", 1)
	require.NoError(t, s.PutRecord(ctx, record))

	got, err := s.GetRecord(ctx, "owner-1", "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "hill farm", got.Payload["name"])
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "east-africa", got.RegionCode)
	assert.False(t, got.Deleted)
}

func TestRecords_GetNotFound(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.GetRecord(ctx, "owner-1", "missing")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestRecords_PutReplacesKeepingCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	record := testRecord("owner-1", "rec-1", 1)
	require.NoError(t, s.PutRecord(ctx, record))

	updated := testRecord("owner-1", "rec-1", 2)
	updated.Payload["name"] = "valley farm"
	updated.CreatedAt = record.CreatedAt
	updated.UpdatedAt = record.UpdatedAt.Add(time.Hour)
	require.NoError(t, s.PutRecord(ctx, updated))

	got, err := s.GetRecord(ctx, "owner-1", "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "valley farm", got.Payload["name"])
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, record.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestRecords_NextVersionPerOwner(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	for want := int64(1); want <= 3; want++ {
		v, err := s.NextVersion(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	// another owner gets an independent sequence
	v, err := s.NextVersion(ctx, "owner-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestRecords_ListSince(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.PutRecord(ctx, testRecord("owner-1", "rec-"+string(rune('a'+i-1)), i)))
	}
	// other owner's records never appear in the delta
	require.NoError(t, s.PutRecord(ctx, testRecord("owner-2", "rec-x", 3)))

	records, err := s.ListSince(ctx, "owner-1", 2, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, int64(3+i), r.Version, "ordered by version ascending")
		assert.Equal(t, "owner-1", r.OwnerID)
	}

	// limit caps the page
	page, err := s.ListSince(ctx, "owner-1", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].Version)
	assert.Equal(t, int64(2), page[1].Version)
}

func TestRecords_ListSinceIncludesTombstones(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	tombstone := testRecord("owner-1", "rec-1", 4)
	tombstone.Deleted = true
	tombstone.Payload = nil
	require.NoError(t, s.PutRecord(ctx, tombstone))

	records, err := s.ListSince(ctx, "owner-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Deleted)
	assert.Nil(t, records[0].Payload)
}

func TestRecords_PurgeTombstones(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	old := testRecord("owner-1", "rec-old", 1)
	old.Deleted = true
	old.UpdatedAt = time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, s.PutRecord(ctx, old))

	fresh := testRecord("owner-1", "rec-fresh", 2)
	fresh.Deleted = true
	require.NoError(t, s.PutRecord(ctx, fresh))

	live := testRecord("owner-1", "rec-live", 3)
	live.UpdatedAt = time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, s.PutRecord(ctx, live))

	purged, err := s.PurgeTombstones(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = s.GetRecord(ctx, "owner-1", "rec-old")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	_, err = s.GetRecord(ctx, "owner-1", "rec-fresh")
	assert.NoError(t, err, "tombstone inside retention window survives")

	_, err = s.GetRecord(ctx, "owner-1", "rec-live")
	assert.NoError(t, err, "live records are never purged")
}
