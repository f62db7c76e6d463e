package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/agrisync/agrisync/internal/client/storage"
)

const (
	keyCheckpoint = "checkpoint"
	keyClock      = "lamport_clock"
	keyDeviceID   = "device_id"
)

// SaveCheckpoint stores the highest server version this device has fully
// integrated. A lower value than the stored one is ignored: the checkpoint
// never moves backwards.
func (s *Storage) SaveCheckpoint(ctx context.Context, version int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)

		if current := bucket.Get([]byte(keyCheckpoint)); current != nil {
			if int64(binary.BigEndian.Uint64(current)) >= version {
				return nil
			}
		}

		if err := bucket.Put([]byte(keyCheckpoint), int64Bytes(version)); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		return nil
	})
}

// GetCheckpoint returns the stored checkpoint, 0 before first sync
func (s *Storage) GetCheckpoint(ctx context.Context) (int64, error) {
	return s.getInt64(keyCheckpoint)
}

// SaveClock persists the Lamport counter
func (s *Storage) SaveClock(ctx context.Context, counter int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketMetadata).Put([]byte(keyClock), int64Bytes(counter)); err != nil {
			return fmt.Errorf("failed to save clock: %w", err)
		}
		return nil
	})
}

// GetClock returns the persisted Lamport counter, 0 initially
func (s *Storage) GetClock(ctx context.Context) (int64, error) {
	return s.getInt64(keyClock)
}

// DeviceID returns this device's stable identifier, generating and
// persisting a UUID on first call.
func (s *Storage) DeviceID(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageClosed
	}

	var deviceID string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)

		if existing := bucket.Get([]byte(keyDeviceID)); existing != nil {
			deviceID = string(existing)
			return nil
		}

		deviceID = uuid.New().String()
		if err := bucket.Put([]byte(keyDeviceID), []byte(deviceID)); err != nil {
			return fmt.Errorf("failed to persist device id: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return deviceID, nil
}

func (s *Storage) getInt64(key string) (int64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var value int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMetadata).Get([]byte(key))
		if data == nil {
			value = 0
			return nil
		}
		value = int64(binary.BigEndian.Uint64(data))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return value, nil
}

func int64Bytes(v int64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(v))
	return data
}
