// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultResetTTL is how long a password reset token stays usable.
const DefaultResetTTL = time.Hour

// PasswordReset records an outstanding reset token. Only the token hash is
// stored and the record is deleted once used.
type PasswordReset struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewPasswordReset creates a validated PasswordReset.
func NewPasswordReset(userID ulid.ULID, tokenHash string, createdAt, expiresAt time.Time) (*PasswordReset, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(createdAt) {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry must be after creation")
	}
	return &PasswordReset{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// ActiveAt reports whether the reset can still be used at t.
func (r *PasswordReset) ActiveAt(t time.Time) bool {
	return t.Before(r.ExpiresAt)
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	Create(ctx context.Context, reset *PasswordReset) error

	// GetByTokenHash returns ErrNotFound when no record matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordReset, error)

	// DeleteByTokenHash consumes the reset matching tokenHash and reports
	// how many rows it removed. Concurrent callers see 1 at most once.
	DeleteByTokenHash(ctx context.Context, tokenHash string) (int64, error)

	// DeleteByUser removes every outstanding reset for userID.
	DeleteByUser(ctx context.Context, userID ulid.ULID) (int64, error)

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
