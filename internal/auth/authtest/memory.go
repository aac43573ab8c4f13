// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package authtest provides in-memory auth repositories for tests.
package authtest

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/billetterie/billetterie/internal/auth"
)

// Store keeps users, sessions, resets and blocks in memory. It implements
// every auth repository interface and auth.Transactor; a failed
// transaction restores the state captured when it began.
type Store struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	users    map[ulid.ULID]auth.User
	sessions map[ulid.ULID]auth.Session
	resets   map[ulid.ULID]auth.PasswordReset
	blocked  map[ulid.ULID]bool
}

var (
	_ auth.UserRepository          = (*Store)(nil)
	_ auth.BlockList               = (*Store)(nil)
	_ auth.Transactor              = (*Store)(nil)
	_ auth.PasswordResetRepository = (*Resets)(nil)
	_ auth.SessionRepository       = (*Sessions)(nil)
)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[ulid.ULID]auth.User),
		sessions: make(map[ulid.ULID]auth.Session),
		resets:   make(map[ulid.ULID]auth.PasswordReset),
		blocked:  make(map[ulid.ULID]bool),
	}
}

// Sessions returns the session repository view of the store.
func (s *Store) Sessions() *Sessions { return (*Sessions)(s) }

// Resets returns the password reset repository view of the store.
func (s *Store) Resets() *Resets { return (*Resets)(s) }

// Block bars userID from signing in.
func (s *Store) Block(userID ulid.ULID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[userID] = true
}

// SessionCount returns how many session rows exist for userID, expired
// ones included.
func (s *Store) SessionCount(userID ulid.ULID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			n++
		}
	}
	return n
}

// ResetCount returns how many reset rows exist for userID.
func (s *Store) ResetCount(userID ulid.ULID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.resets {
		if r.UserID == userID {
			n++
		}
	}
	return n
}

// ExpireSessions moves the expiry of every session of userID to at.
func (s *Store) ExpireSessions(userID ulid.ULID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			sess.ExpiresAt = at
			s.sessions[id] = sess
		}
	}
}

type txKey struct{}

// InTransaction runs fn and rolls the store back if fn fails. Transactions
// run one at a time; a nested call joins the outer one.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, s)

	s.mu.Lock()
	users, sessions := maps.Clone(s.users), maps.Clone(s.sessions)
	resets, blocked := maps.Clone(s.resets), maps.Clone(s.blocked)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users, s.sessions, s.resets, s.blocked = users, sessions, resets, blocked
		s.mu.Unlock()
		return err
	}
	return nil
}

// Create inserts a user.
func (s *Store) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return auth.ErrDuplicate
		}
	}
	s.users[user.ID] = *user
	return nil
}

// GetByID returns a copy of the user.
func (s *Store) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

// GetByEmail returns a copy of the user with email.
func (s *Store) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, auth.ErrNotFound
}

// UpdatePassword replaces the stored hash.
func (s *Store) UpdatePassword(_ context.Context, id ulid.ULID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

// DeleteUser removes a user and nothing else.
func (s *Store) DeleteUser(id ulid.ULID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// IsBlocked reports whether Block was called for userID.
func (s *Store) IsBlocked(_ context.Context, userID ulid.ULID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked[userID], nil
}

// Sessions is the auth.SessionRepository view of a Store.
type Sessions Store

// Create stores a session.
func (r *Sessions) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

func (r *Sessions) find(match func(auth.Session) bool) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range r.sessions {
		if match(sess) {
			return &sess, nil
		}
	}
	return nil, auth.ErrNotFound
}

// GetActiveByTokenHash finds an unexpired session by hash.
func (r *Sessions) GetActiveByTokenHash(_ context.Context, hash string, now time.Time) (*auth.Session, error) {
	return r.find(func(s auth.Session) bool { return s.TokenHash == hash && s.ActiveAt(now) })
}

// GetActiveByTokenHashForUser finds an unexpired session by hash and user.
func (r *Sessions) GetActiveByTokenHashForUser(_ context.Context, hash string, userID ulid.ULID, now time.Time) (*auth.Session, error) {
	return r.find(func(s auth.Session) bool {
		return s.TokenHash == hash && s.UserID == userID && s.ActiveAt(now)
	})
}

// ListActiveByUser returns unexpired sessions ordered by creation.
func (r *Sessions) ListActiveByUser(_ context.Context, userID ulid.ULID, now time.Time) ([]*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auth.Session
	for _, sess := range r.sessions {
		if sess.UserID == userID && sess.ActiveAt(now) {
			out = append(out, &sess)
		}
	}
	slices.SortFunc(out, func(a, b *auth.Session) int { return a.ID.Compare(b.ID) })
	return out, nil
}

func (r *Sessions) deleteWhere(match func(auth.Session) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, sess := range r.sessions {
		if match(sess) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// DeleteByTokenHash removes the session with hash.
func (r *Sessions) DeleteByTokenHash(_ context.Context, hash string) (int64, error) {
	return r.deleteWhere(func(s auth.Session) bool { return s.TokenHash == hash }), nil
}

// DeleteByUser removes every session of userID.
func (r *Sessions) DeleteByUser(_ context.Context, userID ulid.ULID) (int64, error) {
	return r.deleteWhere(func(s auth.Session) bool { return s.UserID == userID }), nil
}

// DeleteExpired removes sessions no longer active at now.
func (r *Sessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(s auth.Session) bool { return !s.ActiveAt(now) }), nil
}

// Resets is the auth.PasswordResetRepository view of a Store.
type Resets Store

// Create stores a reset.
func (r *Resets) Create(_ context.Context, reset *auth.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets[reset.ID] = *reset
	return nil
}

// GetByTokenHash finds a reset by hash.
func (r *Resets) GetByTokenHash(_ context.Context, hash string) (*auth.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reset := range r.resets {
		if reset.TokenHash == hash {
			return &reset, nil
		}
	}
	return nil, auth.ErrNotFound
}

// DeleteByTokenHash removes the reset matching hash.
func (r *Resets) DeleteByTokenHash(_ context.Context, hash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, reset := range r.resets {
		if reset.TokenHash == hash {
			delete(r.resets, id)
			return 1, nil
		}
	}
	return 0, nil
}

// DeleteByUser removes every reset of userID.
func (r *Resets) DeleteByUser(_ context.Context, userID ulid.ULID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, reset := range r.resets {
		if reset.UserID == userID {
			delete(r.resets, id)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes resets no longer active at now.
func (r *Resets) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, reset := range r.resets {
		if !reset.ActiveAt(now) {
			delete(r.resets, id)
			n++
		}
	}
	return n, nil
}
