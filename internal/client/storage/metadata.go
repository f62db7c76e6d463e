package storage

import "context"

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage persists per-device sync state: the pull checkpoint,
// the Lamport clock, and the device identity.
type MetadataStorage interface {
	// SaveCheckpoint stores the highest server version this device has
	// fully integrated. Never moves backwards.
	SaveCheckpoint(ctx context.Context, version int64) error

	// GetCheckpoint returns the stored checkpoint, 0 before first sync.
	GetCheckpoint(ctx context.Context) (int64, error)

	// SaveClock persists the Lamport counter so it survives restart.
	SaveClock(ctx context.Context, counter int64) error

	// GetClock returns the persisted Lamport counter, 0 initially.
	GetClock(ctx context.Context) (int64, error)

	// DeviceID returns this device's stable identifier, generating and
	// persisting one on first call.
	DeviceID(ctx context.Context) (string, error)
}
