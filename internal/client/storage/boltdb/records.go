package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/agrisync/agrisync/internal/client/storage"
	"github.com/agrisync/agrisync/internal/models"
)

// SaveRecord stores or replaces a record by its id
func (s *Storage) SaveRecord(ctx context.Context, record *models.Record) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		if err := bucket.Put([]byte(record.RecordID), data); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetRecord retrieves a record by id, tombstoned or not
func (s *Storage) GetRecord(ctx context.Context, recordID string) (*models.Record, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var record *models.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(recordID))
		if data == nil {
			return storage.ErrRecordNotFound
		}

		record = &models.Record{}
		if err := json.Unmarshal(data, record); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListRecords returns records matching the filter. Iteration restarts from
// the bucket cursor on every call, so the sequence is restartable by
// construction; ordering is by record id unless OrderByClock is set.
func (s *Storage) ListRecords(ctx context.Context, filter storage.RecordFilter) ([]*models.Record, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []*models.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var record models.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}

			if !matchesFilter(&record, filter) {
				return nil
			}

			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	if filter.OrderByClock {
		sort.Slice(records, func(i, j int) bool {
			if records[i].Clock != records[j].Clock {
				return records[i].Clock < records[j].Clock
			}
			return records[i].RecordID < records[j].RecordID
		})
	}
	// bucket iteration is already key-ordered, which is record id order

	return records, nil
}

// PurgeRecord physically removes a record (tombstone garbage collection)
func (s *Storage) PurgeRecord(ctx context.Context, recordID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).Delete([]byte(recordID))
	})
	if err != nil {
		return fmt.Errorf("purge transaction failed: %w", err)
	}

	return nil
}

func matchesFilter(record *models.Record, filter storage.RecordFilter) bool {
	if !filter.IncludeDeleted && record.Deleted {
		return false
	}
	if filter.Kind != "" && record.Kind != filter.Kind {
		return false
	}
	if filter.FarmID != "" {
		farmID, _ := record.Payload["farm_id"].(string)
		if farmID != filter.FarmID {
			return false
		}
	}
	return true
}
