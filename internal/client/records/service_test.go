package records

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisync/agrisync/internal/client/storage"
	"github.com/agrisync/agrisync/internal/client/storage/boltdb"
	"github.com/agrisync/agrisync/internal/models"
)

func setupService(t *testing.T) (*Service, *boltdb.Storage) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "client.db")
	store, err := boltdb.New(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	svc, err := NewService(context.Background(), store, store, store, "owner-1", "east-africa", logger)
	require.NoError(t, err)
	return svc, store
}

func validFarmPayload() models.Payload {
	return models.Payload{
		"name":      "hill farm",
		"farm_type": "crop",
	}
}

func TestService_CreateQueuesChange(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)

	record, err := svc.Create(ctx, models.KindFarm, validFarmPayload())
	require.NoError(t, err)

	assert.NotEmpty(t, record.RecordID)
	assert.Zero(t, record.Version, "unsynced until coordinator accepts")
	assert.Equal(t, "east-africa", record.RegionCode)
	assert.Positive(t, record.Clock)

	pending, err := store.PendingFor(ctx, record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.OpCreate, pending.Op)
	assert.Zero(t, pending.BaseVersion)
}

func TestService_CreateRejectsInvalidPayload(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)

	_, err := svc.Create(ctx, models.KindFarm, models.Payload{"farm_type": "crop"})
	assert.Error(t, err, "name is required")

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing queued for a rejected write")
}

func TestService_UpdateSnapshotsBase(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)

	record, err := svc.Create(ctx, models.KindFarm, validFarmPayload())
	require.NoError(t, err)

	// pretend the create was synced at version 3
	require.NoError(t, store.Ack(ctx, mustPending(t, store, record.RecordID)))
	require.NoError(t, svc.MarkSynced(ctx, record.RecordID, 3))

	updated := validFarmPayload()
	updated["name"] = "valley farm"
	_, err = svc.Update(ctx, record.RecordID, updated)
	require.NoError(t, err)

	pending, err := store.PendingFor(ctx, record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending.BaseVersion)
	assert.Equal(t, "hill farm", pending.BasePayload["name"], "base is the pre-edit payload")
	assert.Equal(t, "valley farm", pending.Payload["name"])
}

func TestService_DeleteTombstones(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	record, err := svc.Create(ctx, models.KindFarm, validFarmPayload())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, record.RecordID))

	_, err = svc.Get(ctx, record.RecordID)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	// tombstone still visible to sync
	all, err := svc.Query(ctx, storage.RecordFilter{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Deleted)

	_, err = svc.Update(ctx, record.RecordID, validFarmPayload())
	assert.ErrorIs(t, err, ErrRecordDeleted)
}

func TestService_ApplySyncSkipsOutbox(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)

	remote := &models.Record{
		RecordID:   uuid.New().String(),
		OwnerID:    "owner-1",
		Kind:       models.KindFarm,
		RegionCode: "east-africa",
		DeviceID:   "device-other",
		Payload:    validFarmPayload(),
		Version:    7,
		Clock:      50,
	}
	require.NoError(t, svc.ApplySync(ctx, remote))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "server-applied updates are not re-queued")

	// local clock observed the remote edit
	record, err := svc.Create(ctx, models.KindFarm, validFarmPayload())
	require.NoError(t, err)
	assert.Greater(t, record.Clock, int64(50))
}

func TestService_MarkSyncedKeepsNewerLocalPayload(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	record, err := svc.Create(ctx, models.KindFarm, validFarmPayload())
	require.NoError(t, err)

	// UI edit lands while the create is being pushed
	edited := validFarmPayload()
	edited["name"] = "renamed while in flight"
	_, err = svc.Update(ctx, record.RecordID, edited)
	require.NoError(t, err)

	require.NoError(t, svc.MarkSynced(ctx, record.RecordID, 1))

	got, err := svc.Get(ctx, record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "renamed while in flight", got.Payload["name"])
}

func TestService_ConcurrentEditsDifferentRecords(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Create(ctx, models.KindFarm, validFarmPayload()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent create failed: %v", err)
	}

	all, err := svc.Query(ctx, storage.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 20)

	// Lamport clocks are unique across the concurrent edits
	seen := make(map[int64]bool)
	for _, r := range all {
		assert.False(t, seen[r.Clock], "duplicate clock %d", r.Clock)
		seen[r.Clock] = true
	}
}

func TestService_PurgeTombstones(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)

	record, err := svc.Create(ctx, models.KindFarm, validFarmPayload())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, record.RecordID))

	// unsynced and pending: must not purge
	purged, err := svc.PurgeTombstones(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, purged)

	// acknowledge and mark synced, then it qualifies
	require.NoError(t, store.Ack(ctx, mustPending(t, store, record.RecordID)))
	require.NoError(t, svc.MarkSynced(ctx, record.RecordID, 2))

	purged, err = svc.PurgeTombstones(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	purgedAgain, err := svc.PurgeTombstones(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, purgedAgain)
}

func TestService_PurgeRespectsRetention(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)

	record, err := svc.Create(ctx, models.KindFarm, validFarmPayload())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, record.RecordID))
	require.NoError(t, store.Ack(ctx, mustPending(t, store, record.RecordID)))
	require.NoError(t, svc.MarkSynced(ctx, record.RecordID, 2))

	purged, err := svc.PurgeTombstones(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged, "tombstone younger than retention window")
}

func mustPending(t *testing.T, store *boltdb.Storage, recordID string) []*models.ChangeEntry {
	t.Helper()
	pending, err := store.PendingFor(context.Background(), recordID)
	require.NoError(t, err)
	return []*models.ChangeEntry{pending}
}
