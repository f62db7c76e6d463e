package storage

import (
	"context"

	"github.com/agrisync/agrisync/internal/models"
)

//go:generate moq -out outbox_mock.go . OutboxStorage

// OutboxStorage is the append-only log of local mutations not yet
// acknowledged by the coordinator. It is the durable source of truth for
// unsynced intent: entries leave only through Ack.
type OutboxStorage interface {
	// Append adds a change entry and assigns its ClientSeq, a per-device
	// strictly increasing counter. Returns ErrOutboxFull when the
	// configured capacity bound is reached.
	Append(ctx context.Context, entry *models.ChangeEntry) error

	// PeekBatch returns up to max pending changes in ClientSeq order
	// without removing them. Entries for the same record are coalesced:
	// the base of the earliest entry, the payload and op of the latest.
	// Coalescing never reorders across different records.
	PeekBatch(ctx context.Context, max int) ([]*models.ChangeEntry, error)

	// Ack removes entries confirmed by the server: for each given entry,
	// all stored changes for its record with seq <= entry.ClientSeq.
	// Unacknowledged entries stay queued for the next round.
	Ack(ctx context.Context, entries []*models.ChangeEntry) error

	// PendingFor returns the coalesced pending change for one record.
	// Returns ErrNoPendingChange if the outbox holds nothing for it.
	PendingFor(ctx context.Context, recordID string) (*models.ChangeEntry, error)

	// Len returns the number of stored (uncoalesced) entries.
	Len(ctx context.Context) (int, error)

	// ClientSeqFor returns the highest ClientSeq stored for a record,
	// 0 when none. Exposed for debugging and tests.
	ClientSeqFor(ctx context.Context, recordID string) (int64, error)
}
