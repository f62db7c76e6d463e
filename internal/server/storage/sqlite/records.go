package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agrisync/agrisync/internal/models"
	"github.com/agrisync/agrisync/internal/server/storage"
)

// GetRecord retrieves a record, tombstones included. The coordinator
// needs tombstones to refuse resurrecting deleted records.
func (s *Storage) GetRecord(ctx context.Context, ownerID, recordID string) (*models.Record, error) {
	query := `
		SELECT record_id, owner_id, kind, region_code, device_id, payload,
		       version, clock, deleted, created_at, updated_at
		FROM records
		WHERE owner_id = ? AND record_id = ?
	`

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, ownerID, recordID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return record, nil
}

// PutRecord inserts or replaces a record at its assigned version. The
// original created_at survives updates.
func (s *Storage) PutRecord(ctx context.Context, record *models.Record) error {
	payload, err := marshalPayload(record.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO records (
			record_id, owner_id, kind, region_code, device_id, payload,
			version, clock, deleted, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, record_id) DO UPDATE SET
			kind = excluded.kind,
			device_id = excluded.device_id,
			payload = excluded.payload,
			version = excluded.version,
			clock = excluded.clock,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		record.RecordID,
		record.OwnerID,
		record.Kind,
		record.RegionCode,
		record.DeviceID,
		payload,
		record.Version,
		record.Clock,
		boolToInt(record.Deleted),
		record.CreatedAt.Unix(),
		record.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}

	return nil
}

// NextVersion atomically allocates the next version from the owner's
// sequence.
func (s *Storage) NextVersion(ctx context.Context, ownerID string) (int64, error) {
	query := `
		INSERT INTO owner_versions (owner_id, version) VALUES (?, 1)
		ON CONFLICT (owner_id) DO UPDATE SET version = version + 1
		RETURNING version
	`

	var version int64
	if err := s.db.QueryRowContext(ctx, query, ownerID).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to allocate version: %w", err)
	}

	return version, nil
}

// ListSince returns the owner's records with version greater than
// sinceVersion, ordered by version ascending.
func (s *Storage) ListSince(ctx context.Context, ownerID string, sinceVersion int64, limit int) ([]*models.Record, error) {
	query := `
		SELECT record_id, owner_id, kind, region_code, device_id, payload,
		       version, clock, deleted, created_at, updated_at
		FROM records
		WHERE owner_id = ? AND version > ?
		ORDER BY version ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID, sinceVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// PurgeTombstones physically removes tombstones last updated before cutoff.
func (s *Storage) PurgeTombstones(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE deleted = 1 AND updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge tombstones: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	record := &models.Record{}
	var payload sql.NullString
	var deleted int
	var createdAt, updatedAt int64

	err := row.Scan(
		&record.RecordID,
		&record.OwnerID,
		&record.Kind,
		&record.RegionCode,
		&record.DeviceID,
		&payload,
		&record.Version,
		&record.Clock,
		&deleted,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Deleted = intToBool(deleted)
	record.CreatedAt = time.Unix(createdAt, 0).UTC()
	record.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &record.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
	}

	return record, nil
}

func marshalPayload(payload models.Payload) (any, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
