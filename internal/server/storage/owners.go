package storage

import (
	"context"
	"time"

	"github.com/agrisync/agrisync/internal/models"
)

//go:generate moq -out owners_mock.go . OwnerStorage

// OwnerStorage is the owner registry. It is deployment-global (not
// regional): the region router consults it to find the one region an
// owner's records may reside in.
type OwnerStorage interface {
	// CreateOwner stores a new owner.
	// Returns ErrOwnerExists if the username is taken.
	CreateOwner(ctx context.Context, owner *models.Owner) error

	// GetOwnerByUsername retrieves an owner by username.
	// Returns ErrOwnerNotFound if no such owner exists.
	GetOwnerByUsername(ctx context.Context, username string) (*models.Owner, error)

	// GetOwnerByID retrieves an owner by id.
	// Returns ErrOwnerNotFound if no such owner exists.
	GetOwnerByID(ctx context.Context, ownerID string) (*models.Owner, error)

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, ownerID string, at time.Time) error
}
