// Package records is the device-local record store the UI talks to. Every
// write lands locally and appends to the outbox; nothing here ever touches
// the network, so the app keeps working with no connectivity at all.
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agrisync/agrisync/internal/clock"
	"github.com/agrisync/agrisync/internal/client/storage"
	"github.com/agrisync/agrisync/internal/models"
	"github.com/agrisync/agrisync/internal/validation"
)

// ErrRecordDeleted is returned when editing a tombstoned record.
var ErrRecordDeleted = errors.New("record is deleted")

// Service owns local record state: reads and writes for the UI, plus the
// sync-facing applies that must not re-enter the outbox.
type Service struct {
	records storage.RecordStorage
	outbox  storage.OutboxStorage
	meta    storage.MetadataStorage
	clock   *clock.Lamport
	logger  *slog.Logger
	locks   *keyedMutex

	ownerID    string
	regionCode string
	deviceID   string
}

// NewService creates the record service, restoring the Lamport clock and
// device identity from local metadata.
func NewService(
	ctx context.Context,
	recordStorage storage.RecordStorage,
	outboxStorage storage.OutboxStorage,
	metaStorage storage.MetadataStorage,
	ownerID, regionCode string,
	logger *slog.Logger,
) (*Service, error) {
	counter, err := metaStorage.GetClock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore clock: %w", err)
	}

	// Guard against a stale persisted counter: the clock must never fall
	// behind an edit already in the store.
	all, err := recordStorage.ListRecords(ctx, storage.RecordFilter{IncludeDeleted: true})
	if err != nil {
		return nil, fmt.Errorf("failed to scan records for clock restore: %w", err)
	}
	for _, r := range all {
		if r.Clock > counter {
			counter = r.Clock
		}
	}

	deviceID, err := metaStorage.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load device id: %w", err)
	}

	return &Service{
		records:    recordStorage,
		outbox:     outboxStorage,
		meta:       metaStorage,
		clock:      clock.New(counter),
		logger:     logger,
		locks:      newKeyedMutex(),
		ownerID:    ownerID,
		regionCode: regionCode,
		deviceID:   deviceID,
	}, nil
}

// DeviceID returns this device's stable identifier.
func (s *Service) DeviceID() string { return s.deviceID }

// OwnerID returns the owner account all records belong to.
func (s *Service) OwnerID() string { return s.ownerID }

// ObserveClock merges a remote Lamport timestamp into the local clock.
func (s *Service) ObserveClock(ctx context.Context, remote int64) {
	s.persistClock(ctx, s.clock.Observe(remote))
}

// Create validates the payload and stores a new record with a
// client-generated UUID, so creation works fully offline. The record
// starts at version 0 until the coordinator accepts it.
func (s *Service) Create(ctx context.Context, kind string, payload models.Payload) (*models.Record, error) {
	if err := validation.Payload(kind, payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &models.Record{
		RecordID:   uuid.New().String(),
		OwnerID:    s.ownerID,
		Kind:       kind,
		RegionCode: s.regionCode,
		DeviceID:   s.deviceID,
		Payload:    payload.Clone(),
		Version:    0,
		Clock:      s.clock.Tick(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	unlock := s.locks.lock(record.RecordID)
	defer unlock()

	if err := s.records.SaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save record: %w", err)
	}

	entry := &models.ChangeEntry{
		RecordID: record.RecordID,
		Kind:     kind,
		Op:       models.OpCreate,
		Payload:  record.Payload.Clone(),
		Clock:    record.Clock,
		DeviceID: s.deviceID,
	}
	if err := s.outbox.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to queue change: %w", err)
	}

	s.persistClock(ctx, record.Clock)
	s.logger.Debug("record created", "record_id", record.RecordID, "kind", kind)

	return record, nil
}

// Update replaces the payload of an existing record and queues the change.
// The outbox entry snapshots the pre-edit payload and version as the merge
// base; coalescing keeps the earliest base if edits pile up offline.
func (s *Service) Update(ctx context.Context, recordID string, payload models.Payload) (*models.Record, error) {
	unlock := s.locks.lock(recordID)
	defer unlock()

	record, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Deleted {
		return nil, ErrRecordDeleted
	}

	if err := validation.Payload(record.Kind, payload); err != nil {
		return nil, err
	}

	basePayload := record.Payload.Clone()
	baseVersion := record.Version

	record.Payload = payload.Clone()
	record.Clock = s.clock.Tick()
	record.DeviceID = s.deviceID
	record.UpdatedAt = time.Now().UTC()

	if err := s.records.SaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save record: %w", err)
	}

	entry := &models.ChangeEntry{
		RecordID:    recordID,
		Kind:        record.Kind,
		Op:          models.OpUpdate,
		BaseVersion: baseVersion,
		BasePayload: basePayload,
		Payload:     record.Payload.Clone(),
		Clock:       record.Clock,
		DeviceID:    s.deviceID,
	}
	if err := s.outbox.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to queue change: %w", err)
	}

	s.persistClock(ctx, record.Clock)

	return record, nil
}

// Delete tombstones a record. Deletion is a mutation like any other: the
// tombstone stays locally and syncs to the server; physical removal only
// happens after the retention window.
func (s *Service) Delete(ctx context.Context, recordID string) error {
	unlock := s.locks.lock(recordID)
	defer unlock()

	record, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if record.Deleted {
		return nil
	}

	basePayload := record.Payload.Clone()
	baseVersion := record.Version

	record.Deleted = true
	record.Clock = s.clock.Tick()
	record.DeviceID = s.deviceID
	record.UpdatedAt = time.Now().UTC()

	if err := s.records.SaveRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to save tombstone: %w", err)
	}

	entry := &models.ChangeEntry{
		RecordID:    recordID,
		Kind:        record.Kind,
		Op:          models.OpDelete,
		BaseVersion: baseVersion,
		BasePayload: basePayload,
		Clock:       record.Clock,
		DeviceID:    s.deviceID,
	}
	if err := s.outbox.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to queue change: %w", err)
	}

	s.persistClock(ctx, record.Clock)
	s.logger.Debug("record deleted", "record_id", recordID)

	return nil
}

// Get retrieves a record by id. Tombstones are returned as not found.
func (s *Service) Get(ctx context.Context, recordID string) (*models.Record, error) {
	record, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Deleted {
		return nil, storage.ErrRecordNotFound
	}
	return record, nil
}

// Query returns records matching the filter; never blocks on network.
func (s *Service) Query(ctx context.Context, filter storage.RecordFilter) ([]*models.Record, error) {
	return s.records.ListRecords(ctx, filter)
}

// PendingCount returns the number of queued outbox entries.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.outbox.Len(ctx)
}

// ApplySync writes a server-originated record state without touching the
// outbox, so pulled updates are never re-queued as local edits.
func (s *Service) ApplySync(ctx context.Context, record *models.Record) error {
	unlock := s.locks.lock(record.RecordID)
	defer unlock()

	existing, err := s.records.GetRecord(ctx, record.RecordID)
	switch {
	case err == nil:
		// A push accepted during this round may already have advanced
		// the stored version past this pulled state.
		if existing.Version > record.Version {
			return nil
		}
		record.CreatedAt = existing.CreatedAt
	case errors.Is(err, storage.ErrRecordNotFound):
	default:
		return err
	}

	record.UpdatedAt = time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}
	if err := s.records.SaveRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to apply synced record: %w", err)
	}

	s.persistClock(ctx, s.clock.Observe(record.Clock))

	return nil
}

// MarkSynced records the authoritative version the coordinator assigned
// to an accepted change. The payload is left alone: the UI may already
// have edited it again while the push was in flight.
func (s *Service) MarkSynced(ctx context.Context, recordID string, version int64) error {
	unlock := s.locks.lock(recordID)
	defer unlock()

	record, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if version <= record.Version {
		return nil
	}

	record.Version = version
	if err := s.records.SaveRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to mark record synced: %w", err)
	}

	return nil
}

// QueueMerge appends a change entry for merged state that still differs
// from the server copy, so the merge result itself gets pushed. The entry
// is based on the server version the merge integrated.
func (s *Service) QueueMerge(ctx context.Context, record *models.Record, serverPayload models.Payload) error {
	op := models.OpUpdate
	if record.Deleted {
		op = models.OpDelete
	}

	entry := &models.ChangeEntry{
		RecordID:    record.RecordID,
		Kind:        record.Kind,
		Op:          op,
		BaseVersion: record.Version,
		BasePayload: serverPayload.Clone(),
		Payload:     record.Payload.Clone(),
		Clock:       s.clock.Tick(),
		DeviceID:    s.deviceID,
	}
	if err := s.outbox.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to queue merged change: %w", err)
	}

	s.persistClock(ctx, entry.Clock)
	return nil
}

// PurgeTombstones removes tombstones older than the retention window.
// Only synced tombstones with nothing pending in the outbox qualify.
func (s *Service) PurgeTombstones(ctx context.Context, retention time.Duration) (int, error) {
	all, err := s.records.ListRecords(ctx, storage.RecordFilter{IncludeDeleted: true})
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-retention)
	purged := 0

	for _, record := range all {
		if !record.Deleted || !record.Synced() || record.UpdatedAt.After(cutoff) {
			continue
		}
		if _, err := s.outbox.PendingFor(ctx, record.RecordID); !errors.Is(err, storage.ErrNoPendingChange) {
			continue
		}

		unlock := s.locks.lock(record.RecordID)
		err := s.records.PurgeRecord(ctx, record.RecordID)
		unlock()
		if err != nil {
			return purged, fmt.Errorf("failed to purge tombstone: %w", err)
		}
		purged++
	}

	if purged > 0 {
		s.logger.Info("purged tombstones", "count", purged)
	}

	return purged, nil
}

func (s *Service) persistClock(ctx context.Context, counter int64) {
	if err := s.meta.SaveClock(ctx, counter); err != nil {
		// Restore rescans stored records, so a failed persist cannot
		// move the clock backwards across a restart.
		s.logger.Warn("failed to persist clock", "error", err)
	}
}
