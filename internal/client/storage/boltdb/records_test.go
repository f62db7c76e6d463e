package boltdb

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisync/agrisync/internal/client/storage"
	"github.com/agrisync/agrisync/internal/models"
)

func testRecord(kind string, payload models.Payload) *models.Record {
	return &models.Record{
		RecordID: uuid.New().String(),
		OwnerID:  "owner-1",
		Kind:     kind,
		Payload:  payload,
		Clock:    1,
		DeviceID: "device-1",
	}
}

func TestRecords_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	record := testRecord(models.KindFarm, models.Payload{"name": "hill farm", "farm_type": "crop"})
	require.NoError(t, s.SaveRecord(ctx, record))

	got, err := s.GetRecord(ctx, record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, record.RecordID, got.RecordID)
	assert.Equal(t, "hill farm", got.Payload["name"])
}

func TestRecords_GetMissing(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.GetRecord(ctx, uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestRecords_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	farmID := uuid.New().String()

	farm := testRecord(models.KindFarm, models.Payload{"name": "hill farm", "farm_type": "crop"})
	farm.RecordID = farmID
	plotA := testRecord(models.KindPlot, models.Payload{"farm_id": farmID, "name": "plot a"})
	plotB := testRecord(models.KindPlot, models.Payload{"farm_id": uuid.New().String(), "name": "plot b"})
	deleted := testRecord(models.KindPlot, models.Payload{"farm_id": farmID, "name": "old plot"})
	deleted.Deleted = true

	for _, r := range []*models.Record{farm, plotA, plotB, deleted} {
		require.NoError(t, s.SaveRecord(ctx, r))
	}

	t.Run("by kind", func(t *testing.T) {
		got, err := s.ListRecords(ctx, storage.RecordFilter{Kind: models.KindPlot})
		require.NoError(t, err)
		assert.Len(t, got, 2, "tombstone excluded")
	})

	t.Run("by farm", func(t *testing.T) {
		got, err := s.ListRecords(ctx, storage.RecordFilter{Kind: models.KindPlot, FarmID: farmID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "plot a", got[0].Payload["name"])
	})

	t.Run("include deleted", func(t *testing.T) {
		got, err := s.ListRecords(ctx, storage.RecordFilter{Kind: models.KindPlot, IncludeDeleted: true})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("ordered by record id by default", func(t *testing.T) {
		got, err := s.ListRecords(ctx, storage.RecordFilter{IncludeDeleted: true})
		require.NoError(t, err)
		for i := 1; i < len(got); i++ {
			assert.Less(t, got[i-1].RecordID, got[i].RecordID)
		}
	})
}

func TestRecords_ListOrderByClock(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	for _, clock := range []int64{5, 2, 9} {
		r := testRecord(models.KindFarm, models.Payload{"name": "f", "farm_type": "crop"})
		r.Clock = clock
		require.NoError(t, s.SaveRecord(ctx, r))
	}

	got, err := s.ListRecords(ctx, storage.RecordFilter{OrderByClock: true})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].Clock)
	assert.Equal(t, int64(9), got[2].Clock)
}

func TestRecords_Purge(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	record := testRecord(models.KindFarm, models.Payload{"name": "gone farm", "farm_type": "crop"})
	record.Deleted = true
	require.NoError(t, s.SaveRecord(ctx, record))

	require.NoError(t, s.PurgeRecord(ctx, record.RecordID))

	_, err := s.GetRecord(ctx, record.RecordID)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}
