// Package coordinator applies pushed changes with optimistic concurrency
// and serves version-ordered deltas. It owns the per-owner version
// sequence; every accepted change, deletes included, advances it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/agrisync/agrisync/internal/models"
	"github.com/agrisync/agrisync/internal/server/regions"
	"github.com/agrisync/agrisync/internal/server/storage"
)

// ErrBadPageToken is returned for a malformed pull page token.
var ErrBadPageToken = errors.New("invalid page token")

// Outcome is the per-entry result of a push. Entries succeed or fail
// independently.
type Outcome struct {
	RecordID string
	Accepted bool

	// Version is the newly assigned version when accepted, or the
	// currently stored version on conflict.
	Version int64

	// Server is the stored record on conflict so the client can merge.
	// Nil means the server does not know the record at all (for example
	// a tombstone already purged past the retention window).
	Server *models.Record
}

// Coordinator is the server-side sync engine.
type Coordinator struct {
	router *regions.Router
	logger *slog.Logger
	locks  *keyedMutex
}

// New creates a coordinator over the region router.
func New(router *regions.Router, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		router: router,
		logger: logger,
		locks:  newKeyedMutex(),
	}
}

// ApplyChanges applies a pushed batch for one owner. A change is accepted
// only when its base version matches the stored version exactly;
// everything else comes back as a conflict with the server state attached.
func (c *Coordinator) ApplyChanges(ctx context.Context, ownerID, deviceID string, entries []*models.ChangeEntry) ([]Outcome, error) {
	store, region, err := c.router.StoreFor(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(entries))
	for _, entry := range entries {
		outcome, err := c.applyOne(ctx, store, region, ownerID, deviceID, entry)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func (c *Coordinator) applyOne(
	ctx context.Context,
	store storage.RecordStorage,
	region, ownerID, deviceID string,
	entry *models.ChangeEntry,
) (Outcome, error) {
	unlock := c.locks.lock(ownerID + "/" + entry.RecordID)
	defer unlock()

	existing, err := store.GetRecord(ctx, ownerID, entry.RecordID)
	if err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
		return Outcome{}, fmt.Errorf("failed to load record: %w", err)
	}

	stored := int64(0)
	if existing != nil {
		stored = existing.Version
	}

	if stored != entry.BaseVersion {
		c.logger.Debug("push conflict",
			"record_id", entry.RecordID,
			"base_version", entry.BaseVersion,
			"stored_version", stored)
		return Outcome{
			RecordID: entry.RecordID,
			Version:  stored,
			Server:   existing,
		}, nil
	}

	version, err := store.NextVersion(ctx, ownerID)
	if err != nil {
		return Outcome{}, err
	}

	now := time.Now().UTC()
	record := &models.Record{
		RecordID:   entry.RecordID,
		OwnerID:    ownerID,
		Kind:       entry.Kind,
		RegionCode: region,
		DeviceID:   deviceID,
		Version:    version,
		Clock:      entry.Clock,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if existing != nil {
		record.CreatedAt = existing.CreatedAt
	}
	if entry.Op == models.OpDelete {
		// A delete with base 0 still tombstones: the record may exist on
		// devices that have not pushed yet.
		record.Deleted = true
	} else {
		record.Payload = entry.Payload.Clone()
	}

	if err := store.PutRecord(ctx, record); err != nil {
		return Outcome{}, err
	}

	return Outcome{
		RecordID: entry.RecordID,
		Accepted: true,
		Version:  version,
	}, nil
}

// Delta returns one page of the owner's records with version greater than
// sinceVersion, tombstones included, ordered by version ascending. The
// returned token resumes after the page; it is empty on the last page.
func (c *Coordinator) Delta(ctx context.Context, ownerID string, sinceVersion int64, pageToken string, limit int) ([]*models.Record, string, error) {
	store, _, err := c.router.StoreFor(ctx, ownerID)
	if err != nil {
		return nil, "", err
	}

	effective := sinceVersion
	if pageToken != "" {
		v, err := strconv.ParseInt(pageToken, 10, 64)
		if err != nil || v < 0 {
			return nil, "", ErrBadPageToken
		}
		if v > effective {
			effective = v
		}
	}

	// One extra row tells us whether another page follows.
	records, err := store.ListSince(ctx, ownerID, effective, limit+1)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(records) > limit {
		records = records[:limit]
		next = strconv.FormatInt(records[len(records)-1].Version, 10)
	}

	return records, next, nil
}

// PurgeTombstones removes tombstones older than retention from every
// regional store and returns the total removed.
func (c *Coordinator) PurgeTombstones(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)
	total := 0

	for region, store := range c.router.Stores() {
		purged, err := store.PurgeTombstones(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to purge region %s: %w", region, err)
		}
		if purged > 0 {
			c.logger.Info("purged tombstones", "region", region, "count", purged)
		}
		total += purged
	}

	return total, nil
}

// RunPurgeLoop runs the tombstone purge on every interval tick until ctx
// is cancelled. Blocks; start it in a goroutine.
func (c *Coordinator) RunPurgeLoop(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.PurgeTombstones(ctx, retention); err != nil {
				c.logger.Error("tombstone purge failed", "error", err)
			}
		}
	}
}
