// Package regions routes every storage access to the one regional store
// an owner's records may legally reside in. The owner registry fixes the
// region at registration; there is deliberately no fallback region.
package regions

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/agrisync/agrisync/internal/server/storage"
)

// ErrUnknownRegion is returned when an owner's registered region has no
// configured store. Requests fail rather than land in a default region.
var ErrUnknownRegion = errors.New("unknown region")

// Router resolves owners to their regional record store.
type Router struct {
	owners storage.OwnerStorage
	stores map[string]storage.RecordStorage
}

// NewRouter creates a router over the configured regional stores.
func NewRouter(owners storage.OwnerStorage, stores map[string]storage.RecordStorage) *Router {
	return &Router{
		owners: owners,
		stores: stores,
	}
}

// StoreFor returns the record store and region code for an owner.
func (r *Router) StoreFor(ctx context.Context, ownerID string) (storage.RecordStorage, string, error) {
	owner, err := r.owners.GetOwnerByID(ctx, ownerID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve owner region: %w", err)
	}

	store, ok := r.stores[owner.RegionCode]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownRegion, owner.RegionCode)
	}

	return store, owner.RegionCode, nil
}

// Known reports whether a region code has a configured store. Used at
// registration so accounts can never be created in an unserved region.
func (r *Router) Known(regionCode string) bool {
	_, ok := r.stores[regionCode]
	return ok
}

// Regions returns the configured region codes, sorted.
func (r *Router) Regions() []string {
	out := make([]string, 0, len(r.stores))
	for code := range r.stores {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Stores returns the configured stores keyed by region code. Used by
// maintenance jobs that run across every region.
func (r *Router) Stores() map[string]storage.RecordStorage {
	return r.stores
}
