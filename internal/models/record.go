package models

import (
	"encoding/json"
	"reflect"
	"time"
)

// Record kinds. Every synced entity is one of these; the payload schema for
// each kind is enforced at the API boundary (see internal/validation).
const (
	KindFarm        = "farm"
	KindPlot        = "plot"
	KindObservation = "observation"
	KindLivestock   = "livestock"
	KindTransaction = "transaction"
)

// Kinds lists all known record kinds.
var Kinds = []string{KindFarm, KindPlot, KindObservation, KindLivestock, KindTransaction}

// KnownKind reports whether kind is one of the supported record kinds.
func KnownKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Payload is the structured field map of a record. Values come from JSON,
// so they are strings, float64 numbers, bools, []any and nested maps.
type Payload map[string]any

// Clone creates a deep copy of the payload via a JSON round trip.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		// Payloads are decoded from JSON, so they always re-encode.
		panic("models: payload not JSON-serializable: " + err.Error())
	}
	var out Payload
	if err := json.Unmarshal(data, &out); err != nil {
		panic("models: payload round trip failed: " + err.Error())
	}
	return out
}

// Equal reports whether two payloads carry the same fields and values.
func (p Payload) Equal(other Payload) bool {
	if len(p) == 0 && len(other) == 0 {
		return true
	}
	return reflect.DeepEqual(map[string]any(p), map[string]any(other))
}

// Record is a versioned domain entity owned by a single farmer account.
// It lives in the device-local store and, once synced, in the owner's
// regional store on the server.
type Record struct {
	CreatedAt time.Time `json:"created_at"` // informational only, never used for ordering
	UpdatedAt time.Time `json:"updated_at"` // informational only, never used for ordering

	// RecordID is a client-generated UUID assigned once at creation,
	// so records can be created fully offline.
	RecordID string `json:"record_id"`
	OwnerID  string `json:"owner_id"`
	Kind     string `json:"kind"`

	// RegionCode is the data-sovereignty partition the record is stored in.
	// Assigned from the owner's registered region at creation, immutable.
	RegionCode string `json:"region_code"`

	// DeviceID identifies the device that produced the current version.
	DeviceID string `json:"device_id"`

	Payload Payload `json:"payload"`

	// Version is assigned by the sync coordinator and only increases.
	// 0 means the record has never been accepted by the server.
	Version int64 `json:"version"`

	// Clock is the Lamport timestamp of the last edit.
	Clock int64 `json:"clock"`

	// Deleted marks a tombstone. Deletion is a mutation, not physical
	// removal; tombstones are purged only after the retention window.
	Deleted bool `json:"deleted"`
}

// NewerThan reports whether r's edit ordered after other's.
// Higher Lamport clock wins; equal clocks fall back to the device id
// lexicographically so every replica agrees on the winner.
func (r *Record) NewerThan(other *Record) bool {
	if r.Clock != other.Clock {
		return r.Clock > other.Clock
	}
	return r.DeviceID > other.DeviceID
}

// Synced reports whether the record has ever been accepted by the server.
func (r *Record) Synced() bool {
	return r.Version > 0
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	out.Payload = r.Payload.Clone()
	return &out
}
