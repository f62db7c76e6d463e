package storage

import (
	"context"

	"github.com/agrisync/agrisync/internal/models"
)

//go:generate moq -out records_mock.go . RecordStorage

// RecordFilter narrows ListRecords results. Zero value matches all
// non-deleted records ordered by record id.
type RecordFilter struct {
	// Kind limits results to one record kind when non-empty.
	Kind string
	// FarmID limits results to records whose payload references the farm
	// (plots, livestock, transactions) when non-empty.
	FarmID string
	// IncludeDeleted includes tombstones, used by sync and status views.
	IncludeDeleted bool
	// OrderByClock orders by logical edit time instead of record id.
	OrderByClock bool
}

// RecordStorage is the device-local durable store for domain records.
// It has no network dependency; reads and writes always succeed locally.
type RecordStorage interface {
	// SaveRecord stores or replaces a record by its id.
	SaveRecord(ctx context.Context, record *models.Record) error

	// GetRecord retrieves a record by id, tombstoned or not.
	// Returns ErrRecordNotFound if no record exists.
	GetRecord(ctx context.Context, recordID string) (*models.Record, error)

	// ListRecords returns records matching the filter.
	ListRecords(ctx context.Context, filter RecordFilter) ([]*models.Record, error)

	// PurgeRecord physically removes a record. Only used for tombstones
	// past the retention window.
	PurgeRecord(ctx context.Context, recordID string) error
}
