package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/agrisync/agrisync/internal/client/storage"
	"github.com/agrisync/agrisync/internal/models"
)

// Append adds a change entry, assigning the next ClientSeq from the
// bucket sequence inside the same transaction.
func (s *Storage) Append(ctx context.Context, entry *models.ChangeEntry) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)

		if bucket.Stats().KeyN >= s.outboxCapacity {
			return storage.ErrOutboxFull
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to advance outbox sequence: %w", err)
		}
		entry.ClientSeq = int64(seq)

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal change entry: %w", err)
		}

		if err := bucket.Put(seqKey(entry.ClientSeq), data); err != nil {
			return fmt.Errorf("failed to append change entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

// PeekBatch returns up to max coalesced pending changes in ClientSeq order.
// All stored entries are scanned so later edits of a record already in the
// batch coalesce into it; ordering across records follows each record's
// earliest seq, so coalescing never reorders creates before their parents.
func (s *Storage) PeekBatch(ctx context.Context, max int) ([]*models.ChangeEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var batch []*models.ChangeEntry
	byRecord := make(map[string]*models.ChangeEntry)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(k, v []byte) error {
			var entry models.ChangeEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal change entry: %w", err)
			}

			if existing, ok := byRecord[entry.RecordID]; ok {
				coalesce(existing, &entry)
				return nil
			}

			if len(batch) >= max {
				// batch is full; only coalesce into records already chosen
				return nil
			}

			e := entry
			byRecord[entry.RecordID] = &e
			batch = append(batch, &e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to peek outbox batch: %w", err)
	}

	return batch, nil
}

// Ack removes acknowledged changes: everything for each entry's record
// with seq <= the acknowledged ClientSeq.
func (s *Storage) Ack(ctx context.Context, entries []*models.ChangeEntry) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if len(entries) == 0 {
		return nil
	}

	acked := make(map[string]int64, len(entries))
	for _, e := range entries {
		if seq, ok := acked[e.RecordID]; !ok || e.ClientSeq > seq {
			acked[e.RecordID] = e.ClientSeq
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)
		cursor := bucket.Cursor()

		var stale [][]byte
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var entry models.ChangeEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal change entry: %w", err)
			}
			if seq, ok := acked[entry.RecordID]; ok && entry.ClientSeq <= seq {
				key := make([]byte, len(k))
				copy(key, k)
				stale = append(stale, key)
			}
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to remove acked entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ack transaction failed: %w", err)
	}

	return nil
}

// PendingFor returns the coalesced pending change for one record
func (s *Storage) PendingFor(ctx context.Context, recordID string) (*models.ChangeEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var pending *models.ChangeEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(k, v []byte) error {
			var entry models.ChangeEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal change entry: %w", err)
			}
			if entry.RecordID != recordID {
				return nil
			}
			if pending == nil {
				e := entry
				pending = &e
				return nil
			}
			coalesce(pending, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan outbox: %w", err)
	}

	if pending == nil {
		return nil, storage.ErrNoPendingChange
	}
	return pending, nil
}

// Len returns the number of stored (uncoalesced) entries
func (s *Storage) Len(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketOutbox).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read outbox length: %w", err)
	}

	return n, nil
}

// ClientSeqFor returns the highest ClientSeq stored for a record, 0 when none
func (s *Storage) ClientSeqFor(ctx context.Context, recordID string) (int64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var max int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(k, v []byte) error {
			var entry models.ChangeEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal change entry: %w", err)
			}
			if entry.RecordID == recordID && entry.ClientSeq > max {
				max = entry.ClientSeq
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan outbox: %w", err)
	}

	return max, nil
}

// coalesce folds a later change for the same record into dst: the base of
// the earliest edit is kept, payload/op/clock/seq come from the latest.
// A create followed by updates stays a create; any later delete wins.
func coalesce(dst, later *models.ChangeEntry) {
	if later.ClientSeq <= dst.ClientSeq {
		return
	}
	dst.Payload = later.Payload
	dst.Clock = later.Clock
	dst.ClientSeq = later.ClientSeq
	if later.Op == models.OpDelete {
		dst.Op = models.OpDelete
	} else if dst.Op != models.OpCreate {
		dst.Op = later.Op
	}
}

func seqKey(seq int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(seq))
	return key
}
