package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agrisync/agrisync/internal/models"
	"github.com/agrisync/agrisync/internal/server/storage"
)

// CreateOwner stores a new owner in the registry.
func (s *Storage) CreateOwner(ctx context.Context, owner *models.Owner) error {
	query := `
		INSERT INTO owners (id, username, password_hash, region_code, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var lastLogin any
	if !owner.LastLoginAt.IsZero() {
		lastLogin = owner.LastLoginAt.Unix()
	}

	_, err := s.db.ExecContext(ctx, query,
		owner.ID,
		owner.Username,
		owner.PasswordHash,
		owner.RegionCode,
		owner.CreatedAt.Unix(),
		lastLogin,
	)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrOwnerExists
		}
		return fmt.Errorf("failed to insert owner: %w", err)
	}

	return nil
}

// GetOwnerByUsername retrieves an owner by username.
func (s *Storage) GetOwnerByUsername(ctx context.Context, username string) (*models.Owner, error) {
	query := `
		SELECT id, username, password_hash, region_code, created_at, last_login_at
		FROM owners
		WHERE username = ?
	`
	return s.scanOwner(s.db.QueryRowContext(ctx, query, username))
}

// GetOwnerByID retrieves an owner by id.
func (s *Storage) GetOwnerByID(ctx context.Context, ownerID string) (*models.Owner, error) {
	query := `
		SELECT id, username, password_hash, region_code, created_at, last_login_at
		FROM owners
		WHERE id = ?
	`
	return s.scanOwner(s.db.QueryRowContext(ctx, query, ownerID))
}

// UpdateLastLogin records a successful login.
func (s *Storage) UpdateLastLogin(ctx context.Context, ownerID string, at time.Time) error {
	query := `UPDATE owners SET last_login_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, at.Unix(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrOwnerNotFound
	}

	return nil
}

func (s *Storage) scanOwner(row *sql.Row) (*models.Owner, error) {
	owner := &models.Owner{}
	var createdAt int64
	var lastLogin sql.NullInt64

	err := row.Scan(
		&owner.ID,
		&owner.Username,
		&owner.PasswordHash,
		&owner.RegionCode,
		&createdAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}

	owner.CreatedAt = time.Unix(createdAt, 0).UTC()
	if lastLogin.Valid {
		owner.LastLoginAt = time.Unix(lastLogin.Int64, 0).UTC()
	}

	return owner, nil
}
