package storage

import "errors"

// Common storage errors
var (
	// ErrOwnerNotFound indicates the owner does not exist in the registry
	ErrOwnerNotFound = errors.New("owner not found")

	// ErrOwnerExists indicates an owner with this username already exists
	ErrOwnerExists = errors.New("owner already exists")

	// ErrTokenNotFound indicates the refresh token was not found
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrRecordNotFound indicates the record does not exist in the
	// regional store
	ErrRecordNotFound = errors.New("record not found")
)
