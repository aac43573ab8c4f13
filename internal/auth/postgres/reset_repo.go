// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/internal/store"
)

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	pool store.Pool
}

var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(pool store.Pool) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

// Create stores a new password reset request.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		reset.ID.String(),
		reset.UserID.String(),
		reset.TokenHash,
		reset.ExpiresAt,
		reset.CreatedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset").
			With("user_id", reset.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset by its token hash, expired or not.
func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	var (
		idStr, userIDStr string
		reset            auth.PasswordReset
	)
	err := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM password_resets
		WHERE token_hash = $1
	`, tokenHash).Scan(&idStr, &userIDStr, &reset.TokenHash, &reset.ExpiresAt, &reset.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get password_reset by token hash").
			Wrap(err)
	}
	if reset.ID, err = parseULID("id", idStr); err != nil {
		return nil, err
	}
	if reset.UserID, err = parseULID("user_id", userIDStr); err != nil {
		return nil, err
	}
	reset.ExpiresAt, reset.CreatedAt = reset.ExpiresAt.UTC(), reset.CreatedAt.UTC()
	return &reset, nil
}

// DeleteByTokenHash removes the reset matching tokenHash. The row lock
// taken by DELETE makes a concurrent caller see zero rows once the first
// commits.
func (r *PasswordResetRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) (int64, error) {
	tag, err := store.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM password_resets WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password_resets by token hash").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByUser removes every outstanding reset for userID.
func (r *PasswordResetRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) (int64, error) {
	tag, err := store.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM password_resets WHERE user_id = $1`, userID.String())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password_resets by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes resets whose expiry is at or before now.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := store.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("RESET_CLEANUP_FAILED").
			With("operation", "delete expired password_resets").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}
