package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/agrisync/agrisync/internal/models"
	"github.com/agrisync/agrisync/internal/server/coordinator"
	"github.com/agrisync/agrisync/internal/server/regions"
	"github.com/agrisync/agrisync/internal/server/storage"
	"github.com/agrisync/agrisync/internal/validation"
	"github.com/agrisync/agrisync/pkg/api"
)

type contextKey string

const (
	// OwnerIDKey is the context key the auth middleware stores the
	// authenticated owner ID under.
	OwnerIDKey contextKey = "owner_id"
	// UsernameKey is the context key for the authenticated username.
	UsernameKey contextKey = "username"
)

// GetOwnerID extracts the authenticated owner ID from the request context.
func GetOwnerID(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(OwnerIDKey).(string)
	return ownerID, ok
}

// GetUsername extracts the authenticated username from the request context.
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// SyncHandler handles push and pull. The owner always comes from the
// access token; a request can never touch another owner's records.
type SyncHandler struct {
	logger       *slog.Logger
	coord        *coordinator.Coordinator
	maxPushBatch int
	pullPageSize int
}

// NewSyncHandler creates the sync handler. maxPushBatch caps entries per
// push request and pullPageSize caps records per delta page.
func NewSyncHandler(logger *slog.Logger, coord *coordinator.Coordinator, maxPushBatch, pullPageSize int) *SyncHandler {
	return &SyncHandler{
		logger:       logger,
		coord:        coord,
		maxPushBatch: maxPushBatch,
		pullPageSize: pullPageSize,
	}
}

// Push handles POST /api/v1/sync/push. Entries are applied independently
// in order; the response carries a per-entry outcome.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := GetOwnerID(ctx)
	if !ok {
		h.logger.Error("owner ID not found in context")
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode push request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.DeviceID == "" {
		sendError(h.logger, w, "device_id is required", http.StatusBadRequest)
		return
	}
	if len(req.Entries) > h.maxPushBatch {
		msg := fmt.Sprintf("batch of %d entries exceeds the limit of %d", len(req.Entries), h.maxPushBatch)
		sendError(h.logger, w, msg, http.StatusBadRequest)
		return
	}

	entries := make([]*models.ChangeEntry, 0, len(req.Entries))
	for i, e := range req.Entries {
		entry, err := toChangeEntry(e, req.DeviceID)
		if err != nil {
			sendError(h.logger, w, fmt.Sprintf("entry %d: %v", i, err), http.StatusBadRequest)
			return
		}
		entries = append(entries, entry)
	}

	outcomes, err := h.coord.ApplyChanges(ctx, ownerID, req.DeviceID, entries)
	if err != nil {
		h.sendRoutingError(ctx, w, err)
		return
	}

	results := make([]api.PushResult, 0, len(outcomes))
	accepted := 0
	for _, o := range outcomes {
		results = append(results, toPushResult(o))
		if o.Accepted {
			accepted++
		}
	}

	h.logger.InfoContext(ctx, "push applied",
		slog.String("owner_id", ownerID),
		slog.String("device_id", req.DeviceID),
		slog.Int("entries", len(entries)),
		slog.Int("accepted", accepted),
		slog.Int("conflicts", len(entries)-accepted))

	sendJSON(h.logger, w, api.PushResponse{Results: results}, http.StatusOK)
}

// Pull handles GET /api/v1/sync/pull?since_version=N&page_token=T&page_size=S.
// Records come back ordered by version ascending, tombstones included.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := GetOwnerID(ctx)
	if !ok {
		h.logger.Error("owner ID not found in context")
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	since := int64(0)
	if s := r.URL.Query().Get("since_version"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			sendError(h.logger, w, "invalid since_version parameter", http.StatusBadRequest)
			return
		}
		since = v
	}

	limit := h.pullPageSize
	if s := r.URL.Query().Get("page_size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			sendError(h.logger, w, "invalid page_size parameter", http.StatusBadRequest)
			return
		}
		if v < limit {
			limit = v
		}
	}

	records, next, err := h.coord.Delta(ctx, ownerID, since, r.URL.Query().Get("page_token"), limit)
	if err != nil {
		if errors.Is(err, coordinator.ErrBadPageToken) {
			sendError(h.logger, w, "invalid page_token parameter", http.StatusBadRequest)
			return
		}
		h.sendRoutingError(ctx, w, err)
		return
	}

	resp := api.PullResponse{
		NextPageToken: next,
		Records:       make([]api.SyncRecord, 0, len(records)),
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, api.SyncRecord{
			RecordID:   rec.RecordID,
			OwnerID:    rec.OwnerID,
			Kind:       rec.Kind,
			RegionCode: rec.RegionCode,
			DeviceID:   rec.DeviceID,
			Payload:    rec.Payload,
			Version:    rec.Version,
			Clock:      rec.Clock,
			Deleted:    rec.Deleted,
		})
	}

	h.logger.InfoContext(ctx, "pull served",
		slog.String("owner_id", ownerID),
		slog.Int64("since_version", since),
		slog.Int("records", len(resp.Records)))

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// sendRoutingError maps owner resolution failures. An owner that vanished
// under a valid token gets 401; an owner registered in a region this
// deployment does not serve gets 503, the records exist elsewhere.
func (h *SyncHandler) sendRoutingError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrOwnerNotFound):
		sendError(h.logger, w, "unknown owner", http.StatusUnauthorized)
	case errors.Is(err, regions.ErrUnknownRegion):
		h.logger.ErrorContext(ctx, "owner region not served", slog.Any("error", err))
		sendError(h.logger, w, "owner region is not served by this deployment", http.StatusServiceUnavailable)
	default:
		h.logger.ErrorContext(ctx, "sync request failed", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
	}
}

func toChangeEntry(e api.PushEntry, deviceID string) (*models.ChangeEntry, error) {
	if e.RecordID == "" {
		return nil, fmt.Errorf("record_id is required")
	}
	op := models.Op(e.Op)
	if !models.ValidOp(op) {
		return nil, fmt.Errorf("unknown op %q", e.Op)
	}
	if e.BaseVersion < 0 {
		return nil, fmt.Errorf("base_version must not be negative")
	}
	if op == models.OpDelete {
		if e.Payload != nil {
			return nil, fmt.Errorf("delete must not carry a payload")
		}
	} else if err := validation.Payload(e.Kind, e.Payload); err != nil {
		return nil, err
	}

	return &models.ChangeEntry{
		RecordID:    e.RecordID,
		Kind:        e.Kind,
		Op:          op,
		BaseVersion: e.BaseVersion,
		Payload:     models.Payload(e.Payload),
		ClientSeq:   e.ClientSeq,
		Clock:       e.Clock,
		DeviceID:    deviceID,
	}, nil
}

func toPushResult(o coordinator.Outcome) api.PushResult {
	result := api.PushResult{
		RecordID: o.RecordID,
		Status:   api.StatusConflict,
		Version:  o.Version,
	}
	if o.Accepted {
		result.Status = api.StatusAccepted
		return result
	}

	if o.Server != nil {
		result.ServerPayload = o.Server.Payload
		result.ServerDeviceID = o.Server.DeviceID
		result.ServerClock = o.Server.Clock
		result.ServerDeleted = o.Server.Deleted
	} else {
		// The server has no trace of the record: its tombstone was purged
		// past the retention window. Report it as deleted so the client
		// resolves toward deletion instead of resurrecting it.
		result.ServerDeleted = true
	}
	return result
}
