package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	// BoltDB bucket names
	bucketRecords  = []byte("records")
	bucketOutbox   = []byte("outbox")
	bucketSession  = []byte("session")
	bucketMetadata = []byte("metadata")
)

// DefaultOutboxCapacity bounds the outbox entry count. Sized for weeks of
// offline edits on a single device.
const DefaultOutboxCapacity = 50000

// Storage represents BoltDB storage implementation for the client. One
// file holds the record store, the outbox and the sync metadata so they
// survive restarts together.
type Storage struct {
	db             *bbolt.DB
	outboxCapacity int
}

// Option configures Storage.
type Option func(*Storage)

// WithOutboxCapacity overrides the outbox capacity bound.
func WithOutboxCapacity(n int) Option {
	return func(s *Storage) {
		s.outboxCapacity = n
	}
}

// New creates a new BoltDB storage instance.
// dbPath is the path to the BoltDB database file.
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db, outboxCapacity: DefaultOutboxCapacity}
	for _, opt := range opts {
		opt(storage)
	}

	if err := storage.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initBuckets creates the required buckets if they don't exist yet
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketOutbox, bucketSession, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
