// Package sync drives push-then-pull rounds against the coordinator. A
// round is safe to interrupt at any point: outbox entries leave only on
// acknowledgement and the pull checkpoint advances only after a fully
// integrated page, so a dropped connection just means the next round
// repeats some work.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/sethvargo/go-retry"

	httpClient "github.com/agrisync/agrisync/internal/client/api"
	"github.com/agrisync/agrisync/internal/client/records"
	"github.com/agrisync/agrisync/internal/client/storage"
	"github.com/agrisync/agrisync/internal/merge"
	"github.com/agrisync/agrisync/internal/models"
	"github.com/agrisync/agrisync/pkg/api"
)

//go:generate moq -out service_mock.go . Service

// Service defines the sync engine interface.
type Service interface {
	// Sync runs one full push-then-pull round.
	Sync(ctx context.Context) (*Result, error)

	// PendingCount returns the number of queued outbox entries.
	PendingCount(ctx context.Context) (int, error)
}

// Result summarizes one sync round.
type Result struct {
	Pushed    int // changes accepted by the coordinator
	Pulled    int // records integrated from the coordinator
	Conflicts int // conflicts resolved by three-way merge
	Requeued  int // merge results that still differ from the server and go back out

	// DiscardedEdits lists record ids whose local payload edit lost to a
	// remote delete. Callers must surface these to the user.
	DiscardedEdits []string
}

// Config tunes a sync round. Zero values fall back to defaults.
type Config struct {
	BatchSize int           // max outbox entries per push request
	PageSize  int           // records per pull page
	RetryBase time.Duration // initial backoff for transient request failures
	// TombstoneRetention is how long local tombstones are kept after a
	// round. Must match the server's window or exceed it.
	TombstoneRetention time.Duration
	MaxRetries         uint64
}

const (
	defaultBatchSize = 200
	defaultPageSize  = 100
	defaultRetryBase = 500 * time.Millisecond
	defaultRetries   = 4
	defaultRetention = 30 * 24 * time.Hour

	// tokenSlack refreshes the access token slightly before expiry so a
	// round does not fail halfway through.
	tokenSlack = 30 * time.Second
)

type service struct {
	apiClient httpClient.ClientAPI
	records   *records.Service
	outbox    storage.OutboxStorage
	meta      storage.MetadataStorage
	sessions  storage.SessionStorage
	logger    *slog.Logger
	cfg       Config
}

// NewService creates the sync engine.
func NewService(
	apiClient httpClient.ClientAPI,
	recordService *records.Service,
	outbox storage.OutboxStorage,
	meta storage.MetadataStorage,
	sessions storage.SessionStorage,
	cfg Config,
	logger *slog.Logger,
) Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultRetries
	}
	if cfg.TombstoneRetention <= 0 {
		cfg.TombstoneRetention = defaultRetention
	}
	return &service{
		apiClient: apiClient,
		records:   recordService,
		outbox:    outbox,
		meta:      meta,
		sessions:  sessions,
		logger:    logger,
		cfg:       cfg,
	}
}

// Sync pushes pending local changes, then pulls everything newer than the
// checkpoint. Push goes first so the server resolves conflicts against our
// latest intent before we integrate its state.
func (s *service) Sync(ctx context.Context) (*Result, error) {
	session, err := s.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	if err := s.push(ctx, session, result); err != nil {
		return result, fmt.Errorf("push phase failed: %w", err)
	}
	if err := s.pull(ctx, session, result); err != nil {
		return result, fmt.Errorf("pull phase failed: %w", err)
	}

	// Local tombstones past the retention window are done syncing; the
	// server forgets them on the same schedule.
	purged, err := s.records.PurgeTombstones(ctx, s.cfg.TombstoneRetention)
	if err != nil {
		s.logger.Warn("local tombstone purge failed", "error", err)
	} else if purged > 0 {
		s.logger.Debug("purged local tombstones", "count", purged)
	}

	s.logger.Info("sync round completed",
		"pushed", result.Pushed,
		"pulled", result.Pulled,
		"conflicts", result.Conflicts,
		"requeued", result.Requeued)

	return result, nil
}

// PendingCount returns the number of queued outbox entries.
func (s *service) PendingCount(ctx context.Context) (int, error) {
	return s.outbox.Len(ctx)
}

func (s *service) push(ctx context.Context, session *storage.Session, result *Result) error {
	for {
		batch, err := s.outbox.PeekBatch(ctx, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to read outbox: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		req := api.PushRequest{
			DeviceID: s.records.DeviceID(),
			Entries:  toPushEntries(batch),
		}

		var resp *api.PushResponse
		err = s.withRetry(ctx, "push", func(ctx context.Context) error {
			resp, err = s.apiClient.Push(ctx, session.AccessToken, req)
			return err
		})
		if err != nil {
			return err
		}

		byID := make(map[string]*models.ChangeEntry, len(batch))
		for _, entry := range batch {
			byID[entry.RecordID] = entry
		}

		processed := 0
		for i := range resp.Results {
			res := &resp.Results[i]
			entry, ok := byID[res.RecordID]
			if !ok {
				s.logger.Warn("push result for unknown record", "record_id", res.RecordID)
				continue
			}

			switch res.Status {
			case api.StatusAccepted:
				if err := s.records.MarkSynced(ctx, res.RecordID, res.Version); err != nil {
					return fmt.Errorf("failed to mark record synced: %w", err)
				}
				if err := s.outbox.Ack(ctx, []*models.ChangeEntry{entry}); err != nil {
					return fmt.Errorf("failed to ack change: %w", err)
				}
				result.Pushed++
				processed++

			case api.StatusConflict:
				serverVer := merge.Version{
					Payload:  res.ServerPayload,
					DeviceID: res.ServerDeviceID,
					Clock:    res.ServerClock,
					Deleted:  res.ServerDeleted,
				}
				if err := s.resolveConflict(ctx, session, entry, serverVer, res.Version, result); err != nil {
					return err
				}
				processed++

			default:
				s.logger.Warn("unknown push status", "record_id", res.RecordID, "status", res.Status)
			}
		}

		// Entries the server did not answer for stay queued; bail out
		// instead of pushing the same batch forever.
		if processed == 0 {
			s.logger.Warn("push round made no progress", "batch", len(batch))
			return nil
		}
	}
}

func (s *service) pull(ctx context.Context, session *storage.Session, result *Result) error {
	checkpoint, err := s.meta.GetCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	pageToken := ""
	for {
		var resp *api.PullResponse
		err = s.withRetry(ctx, "pull", func(ctx context.Context) error {
			resp, err = s.apiClient.Pull(ctx, session.AccessToken, checkpoint, pageToken, s.cfg.PageSize)
			return err
		})
		if err != nil {
			return err
		}

		var pageMax int64
		for i := range resp.Records {
			record := toRecord(&resp.Records[i])
			if err := s.integrate(ctx, session, record, result); err != nil {
				return err
			}
			if record.Version > pageMax {
				pageMax = record.Version
			}
			result.Pulled++
		}

		// The checkpoint moves only after every record of the page is
		// integrated, so an interrupted pull re-serves the page.
		if pageMax > checkpoint {
			checkpoint = pageMax
			if err := s.meta.SaveCheckpoint(ctx, checkpoint); err != nil {
				return fmt.Errorf("failed to save checkpoint: %w", err)
			}
		}

		if resp.NextPageToken == "" {
			return nil
		}
		pageToken = resp.NextPageToken
	}
}

// integrate applies one pulled record. Records without a pending local
// change are overwritten with server state; records with one go through
// the three-way merge against the pending entry's base.
func (s *service) integrate(ctx context.Context, session *storage.Session, record *models.Record, result *Result) error {
	pending, err := s.outbox.PendingFor(ctx, record.RecordID)
	if errors.Is(err, storage.ErrNoPendingChange) {
		if err := s.records.ApplySync(ctx, record); err != nil {
			return fmt.Errorf("failed to apply pulled record: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check pending changes: %w", err)
	}

	serverVer := merge.Version{
		Payload:  record.Payload,
		DeviceID: record.DeviceID,
		Clock:    record.Clock,
		Deleted:  record.Deleted,
	}
	return s.resolveConflict(ctx, session, pending, serverVer, record.Version, result)
}

// resolveConflict merges a pending local change with server state, applies
// the outcome locally at the server's version, and re-queues the merged
// state when it still differs from what the server holds. The original
// pending entries are acknowledged either way; a retried push whose merge
// equals the server copy thus resolves to a no-op.
func (s *service) resolveConflict(
	ctx context.Context,
	session *storage.Session,
	entry *models.ChangeEntry,
	serverVer merge.Version,
	serverVersion int64,
	result *Result,
) error {
	result.Conflicts++

	localVer := merge.Version{
		Payload:  entry.Payload,
		DeviceID: entry.DeviceID,
		Clock:    entry.Clock,
		Deleted:  entry.Op == models.OpDelete,
	}
	merged := merge.Resolve(entry.BasePayload, localVer, serverVer)

	version := serverVersion
	if serverVer.Deleted && serverVersion == 0 {
		// The server purged the record's tombstone past the retention
		// window, so no authoritative version survives. Tombstone over
		// the local copy at its current version; a version of 0 would
		// lose to the stored record and leave it alive forever.
		if current, err := s.records.Get(ctx, entry.RecordID); err == nil {
			version = current.Version
		}
	}

	clock := entry.Clock
	if serverVer.Clock > clock {
		clock = serverVer.Clock
	}
	deviceID := entry.DeviceID
	if serverVer.NewerThan(localVer) {
		deviceID = serverVer.DeviceID
	}

	record := &models.Record{
		RecordID:   entry.RecordID,
		OwnerID:    session.OwnerID,
		Kind:       entry.Kind,
		RegionCode: session.RegionCode,
		DeviceID:   deviceID,
		Payload:    merged.Payload,
		Version:    version,
		Clock:      clock,
		Deleted:    merged.Deleted,
	}
	if err := s.records.ApplySync(ctx, record); err != nil {
		return fmt.Errorf("failed to apply merged record: %w", err)
	}

	if merged.DiscardedEdit {
		result.DiscardedEdits = append(result.DiscardedEdits, entry.RecordID)
		s.logger.Warn("edit discarded by concurrent delete",
			"record_id", entry.RecordID,
			"kind", entry.Kind)
	}

	if mergeDiffers(merged, serverVer) {
		if err := s.records.QueueMerge(ctx, record, serverVer.Payload); err != nil {
			return err
		}
		result.Requeued++
	}

	// The re-queued entry has a higher client seq, so acking the
	// original leaves it in place.
	if err := s.outbox.Ack(ctx, []*models.ChangeEntry{entry}); err != nil {
		return fmt.Errorf("failed to ack merged change: %w", err)
	}

	return nil
}

// mergeDiffers reports whether the merge outcome still differs from the
// server's stored state and therefore needs another push.
func mergeDiffers(merged merge.Result, server merge.Version) bool {
	if merged.Deleted != server.Deleted {
		return true
	}
	if merged.Deleted {
		return false
	}
	return !merged.Payload.Equal(server.Payload)
}

// ensureSession loads the stored session, refreshing the token pair when
// the access token is about to expire.
func (s *service) ensureSession(ctx context.Context) (*storage.Session, error) {
	session, err := s.sessions.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if time.Until(session.ExpiresAt) > tokenSlack {
		return session, nil
	}

	var resp *api.TokenResponse
	err = s.withRetry(ctx, "refresh", func(ctx context.Context) error {
		resp, err = s.apiClient.Refresh(ctx, api.RefreshRequest{RefreshToken: session.RefreshToken})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	session.AccessToken = resp.AccessToken
	session.RefreshToken = resp.RefreshToken
	session.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save refreshed session: %w", err)
	}

	return session, nil
}

// withRetry runs fn with exponential backoff on transient failures.
func (s *service) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(s.cfg.MaxRetries,
		retry.WithJitter(100*time.Millisecond,
			retry.NewExponential(s.cfg.RetryBase)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isTemporary(err) {
			s.logger.Debug("retrying request", "op", op, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

// isTemporary reports whether the error is worth retrying: network-level
// failures and 429/5xx responses are, auth and validation errors are not.
func isTemporary(err error) bool {
	var statusErr *httpClient.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func toPushEntries(batch []*models.ChangeEntry) []api.PushEntry {
	entries := make([]api.PushEntry, 0, len(batch))
	for _, e := range batch {
		entries = append(entries, api.PushEntry{
			RecordID:    e.RecordID,
			Kind:        e.Kind,
			Op:          string(e.Op),
			Payload:     e.Payload,
			BaseVersion: e.BaseVersion,
			ClientSeq:   e.ClientSeq,
			Clock:       e.Clock,
		})
	}
	return entries
}

func toRecord(w *api.SyncRecord) *models.Record {
	return &models.Record{
		RecordID:   w.RecordID,
		OwnerID:    w.OwnerID,
		Kind:       w.Kind,
		RegionCode: w.RegionCode,
		DeviceID:   w.DeviceID,
		Payload:    w.Payload,
		Version:    w.Version,
		Clock:      w.Clock,
		Deleted:    w.Deleted,
	}
}
