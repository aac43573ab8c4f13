// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/pkg/errutil"
)

// SessionLedger records issued session tokens. A token is only accepted
// while the ledger holds an unexpired entry for its hash.
type SessionLedger struct {
	repo    SessionRepository
	resets  PasswordResetRepository
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics Metrics
}

// LedgerOption configures a SessionLedger.
type LedgerOption func(*SessionLedger)

// WithLedgerClock overrides the ledger time source.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *SessionLedger) { l.now = now }
}

// WithLedgerLogger sets the logger used by the sweeper.
func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(l *SessionLedger) { l.logger = logger }
}

// WithLedgerMetrics reports swept session counts to m.
func WithLedgerMetrics(m Metrics) LedgerOption {
	return func(l *SessionLedger) { l.metrics = m }
}

// WithExpiredResets makes Sweep also purge expired password resets.
func WithExpiredResets(repo PasswordResetRepository) LedgerOption {
	return func(l *SessionLedger) { l.resets = repo }
}

// NewSessionLedger creates a ledger whose sessions last ttl. A zero ttl
// selects DefaultSessionTTL.
func NewSessionLedger(repo SessionRepository, ttl time.Duration, opts ...LedgerOption) (*SessionLedger, error) {
	if repo == nil {
		return nil, oops.Code("LEDGER_INVALID_CONFIG").Errorf("session repository is required")
	}
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	if ttl < 0 {
		return nil, oops.Code("LEDGER_INVALID_CONFIG").With("ttl", ttl).Errorf("session ttl must be positive")
	}
	l := &SessionLedger{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.Default(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// TTL returns the session lifetime.
func (l *SessionLedger) TTL() time.Duration {
	return l.ttl
}

// Create records a session for token, expiring TTL from now.
func (l *SessionLedger) Create(ctx context.Context, userID ulid.ULID, token string, meta ClientMeta) (*Session, error) {
	now := l.now().UTC()
	session, err := NewSession(userID, HashToken(token), meta, now, now.Add(l.ttl))
	if err != nil {
		return nil, err
	}
	if err := l.repo.Create(ctx, session); err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return session, nil
}

// FindActiveByToken returns the unexpired session for token, or ErrNotFound.
func (l *SessionLedger) FindActiveByToken(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	session, err := l.repo.GetActiveByTokenHash(ctx, HashToken(token), l.now())
	if err != nil {
		return nil, oops.With("operation", "find session").Wrap(err)
	}
	return session, nil
}

// FindActiveByTokenForUser is FindActiveByToken restricted to userID.
func (l *SessionLedger) FindActiveByTokenForUser(ctx context.Context, token string, userID ulid.ULID) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	session, err := l.repo.GetActiveByTokenHashForUser(ctx, HashToken(token), userID, l.now())
	if err != nil {
		return nil, oops.With("operation", "find session").With("user_id", userID.String()).Wrap(err)
	}
	return session, nil
}

// Revoke deletes the session for token. Revoking an unknown token succeeds.
func (l *SessionLedger) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := l.repo.DeleteByTokenHash(ctx, HashToken(token)); err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").Wrap(err)
	}
	return nil
}

// RevokeAll deletes every session of userID and returns how many existed.
func (l *SessionLedger) RevokeAll(ctx context.Context, userID ulid.ULID) (int64, error) {
	n, err := l.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return n, nil
}

// ListActive returns the unexpired sessions of userID.
func (l *SessionLedger) ListActive(ctx context.Context, userID ulid.ULID) ([]*Session, error) {
	sessions, err := l.repo.ListActiveByUser(ctx, userID, l.now())
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return sessions, nil
}

// Sweep deletes expired sessions and returns how many were removed.
func (l *SessionLedger) Sweep(ctx context.Context) (int64, error) {
	now := l.now()
	n, err := l.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	l.metrics.RecordSessionsSwept(n)

	if l.resets != nil {
		if _, err := l.resets.DeleteExpired(ctx, now); err != nil {
			return n, oops.Code("RESET_SWEEP_FAILED").Wrap(err)
		}
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled. A
// non-positive interval disables sweeping.
func (l *SessionLedger) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.Sweep(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				errutil.LogErrorContext(ctx, l.logger, "session sweep failed", err)
				continue
			}
			if n > 0 {
				l.logger.InfoContext(ctx, "expired sessions swept", "count", n)
			}
		}
	}
}
