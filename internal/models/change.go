package models

// Op identifies the mutation type carried by a change entry.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ValidOp reports whether op is a known mutation type.
func ValidOp(op Op) bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// ChangeEntry is one local mutation waiting in the outbox. Entries are
// ordered by ClientSeq, a per-device strictly increasing counter; the
// counter has no meaning across devices.
type ChangeEntry struct {
	RecordID string `json:"record_id"`
	Kind     string `json:"kind"`
	Op       Op     `json:"op"`

	// BaseVersion is the server version the edit was made against
	// (0 for records never synced). The coordinator rejects the entry
	// as a conflict when its stored version has moved past this.
	BaseVersion int64 `json:"base_version"`

	// BasePayload snapshots the record's payload as of BaseVersion.
	// The conflict resolver needs it to tell which side changed which
	// fields. Empty for creates.
	BasePayload Payload `json:"base_payload,omitempty"`

	// Payload is the full payload after the edit. Nil for deletes.
	Payload Payload `json:"payload,omitempty"`

	ClientSeq int64  `json:"client_seq"`
	Clock     int64  `json:"clock"`
	DeviceID  string `json:"device_id"`
}

// Clone creates a deep copy of the change entry.
func (e *ChangeEntry) Clone() *ChangeEntry {
	out := *e
	out.BasePayload = e.BasePayload.Clone()
	out.Payload = e.Payload.Clone()
	return &out
}
