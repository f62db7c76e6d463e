package storage

import "errors"

// Common client storage errors
var (
	// ErrRecordNotFound indicates that no record exists for the id
	ErrRecordNotFound = errors.New("record not found")

	// ErrNoPendingChange indicates the outbox holds nothing for the record
	ErrNoPendingChange = errors.New("no pending change for record")

	// ErrOutboxFull indicates the outbox hit its capacity bound. Entries
	// are never dropped silently; the caller surfaces storage pressure.
	ErrOutboxFull = errors.New("outbox capacity exceeded")

	// ErrSessionNotFound indicates that no login session is stored
	ErrSessionNotFound = errors.New("session not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
