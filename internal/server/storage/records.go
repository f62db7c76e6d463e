package storage

import (
	"context"
	"time"

	"github.com/agrisync/agrisync/internal/models"
)

//go:generate moq -out records_mock.go . RecordStorage

// RecordStorage is one region's authoritative record store. A deployment
// opens one per region; records never move between them.
type RecordStorage interface {
	// GetRecord retrieves a record, tombstones included.
	// Returns ErrRecordNotFound if it does not exist.
	GetRecord(ctx context.Context, ownerID, recordID string) (*models.Record, error)

	// PutRecord inserts or replaces a record at its assigned version.
	PutRecord(ctx context.Context, record *models.Record) error

	// NextVersion atomically allocates the next version from the owner's
	// sequence. Versions are strictly increasing per owner and shared
	// across all of the owner's records, which is what makes "everything
	// after version N" a complete delta.
	NextVersion(ctx context.Context, ownerID string) (int64, error)

	// ListSince returns up to limit of the owner's records with version
	// greater than sinceVersion, tombstones included, ordered by version
	// ascending.
	ListSince(ctx context.Context, ownerID string, sinceVersion int64, limit int) ([]*models.Record, error)

	// PurgeTombstones physically removes tombstones last updated before
	// cutoff and returns how many were removed.
	PurgeTombstones(ctx context.Context, cutoff time.Time) (int, error)
}
