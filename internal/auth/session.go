// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTTL is how long a session and its token stay valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

// ClientMeta describes the client a session was opened from.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// Session is a server-side record of an issued bearer token. Only the
// SHA-256 of the token is stored.
type Session struct {
	ID        ulid.ULID `json:"id"`
	UserID    ulid.ULID `json:"userId"`
	TokenHash string    `json:"-"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewSession creates a validated Session.
// IPAddress and UserAgent are optional and may be empty.
func NewSession(userID ulid.ULID, tokenHash string, meta ClientMeta, createdAt, expiresAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(createdAt) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry must be after creation")
	}
	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// ActiveAt reports whether the session is still valid at t. A session whose
// expiry equals t is no longer active.
func (s *Session) ActiveAt(t time.Time) bool {
	return t.Before(s.ExpiresAt)
}

// HashToken computes the hex SHA-256 of a bearer token. It is the lookup key
// for sessions and password resets.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepository manages session persistence. Lookups that take now only
// return sessions with expires_at > now.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error

	// GetActiveByTokenHash returns ErrNotFound when no active session matches.
	GetActiveByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*Session, error)

	// GetActiveByTokenHashForUser also requires the session to belong to userID.
	GetActiveByTokenHashForUser(ctx context.Context, tokenHash string, userID ulid.ULID, now time.Time) (*Session, error)

	ListActiveByUser(ctx context.Context, userID ulid.ULID, now time.Time) ([]*Session, error)

	// DeleteByTokenHash returns the number of rows removed, zero included.
	DeleteByTokenHash(ctx context.Context, tokenHash string) (int64, error)

	DeleteByUser(ctx context.Context, userID ulid.ULID) (int64, error)

	// DeleteExpired removes sessions with expires_at <= now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
