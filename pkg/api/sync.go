package api

// Push entry statuses returned by the coordinator.
const (
	StatusAccepted = "accepted"
	StatusConflict = "conflict"
)

// PushEntry is one outbox change submitted to the coordinator.
type PushEntry struct {
	RecordID    string         `json:"record_id"`
	Kind        string         `json:"kind"`
	Op          string         `json:"op"` // create|update|delete
	Payload     map[string]any `json:"payload,omitempty"`
	BaseVersion int64          `json:"base_version"`
	ClientSeq   int64          `json:"client_seq"`
	Clock       int64          `json:"clock"`
}

// PushRequest is the body of POST /api/v1/sync/push. The owner is taken
// from the access token, never from the body.
type PushRequest struct {
	DeviceID string      `json:"device_id"`
	Entries  []PushEntry `json:"entries"`
}

// PushResult is the per-entry outcome of a push. Entries succeed or fail
// independently; a batch is never atomic as a unit.
type PushResult struct {
	RecordID string `json:"record_id"`
	Status   string `json:"status"` // accepted|conflict

	// Version is the authoritative version after an accepted change, or
	// the currently stored version on conflict.
	Version int64 `json:"version"`

	// Server state returned on conflict so the client can merge locally.
	ServerPayload  map[string]any `json:"server_payload,omitempty"`
	ServerDeviceID string         `json:"server_device_id,omitempty"`
	ServerClock    int64          `json:"server_clock,omitempty"`
	ServerDeleted  bool           `json:"server_deleted,omitempty"`
}

// PushResponse is the response of POST /api/v1/sync/push.
type PushResponse struct {
	Results []PushResult `json:"results"`
}

// SyncRecord is the wire form of a record served by the pull endpoint.
type SyncRecord struct {
	RecordID   string         `json:"record_id"`
	OwnerID    string         `json:"owner_id"`
	Kind       string         `json:"kind"`
	RegionCode string         `json:"region_code"`
	DeviceID   string         `json:"device_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	Version    int64          `json:"version"`
	Clock      int64          `json:"clock"`
	Deleted    bool           `json:"deleted"`
}

// PullResponse is the response of GET /api/v1/sync/pull. Records are
// ordered by version ascending; NextPageToken is empty on the last page.
type PullResponse struct {
	NextPageToken string       `json:"next_page_token,omitempty"`
	Records       []SyncRecord `json:"records"`
}
