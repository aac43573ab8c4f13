// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/internal/auth/authtest"
	"github.com/billetterie/billetterie/internal/auth/mocks"
	"github.com/billetterie/billetterie/pkg/errutil"
)

type recordingMetrics struct {
	ops   []string
	swept atomic.Int64
}

func (m *recordingMetrics) RecordAuthOperation(op, outcome string) {
	m.ops = append(m.ops, op+":"+outcome)
}

func (m *recordingMetrics) RecordSessionsSwept(n int64) {
	m.swept.Add(n)
}

func TestNewSessionLedger(t *testing.T) {
	_, err := auth.NewSessionLedger(nil, time.Hour)
	errutil.AssertErrorCode(t, err, "LEDGER_INVALID_CONFIG")

	_, err = auth.NewSessionLedger(authtest.NewStore().Sessions(), -time.Hour)
	errutil.AssertErrorCode(t, err, "LEDGER_INVALID_CONFIG")

	l, err := auth.NewSessionLedger(authtest.NewStore().Sessions(), 0)
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultSessionTTL, l.TTL())
}

func TestSessionLedger_Create(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := mocks.NewMockSessionRepository(t)
	ledger, err := auth.NewSessionLedger(repo, 2*time.Hour, auth.WithLedgerClock(fixedClock(now)))
	require.NoError(t, err)

	userID := ulid.Make()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(s *auth.Session) bool {
		return s.UserID == userID &&
			s.TokenHash == auth.HashToken("tok") &&
			s.ExpiresAt.Equal(now.Add(2*time.Hour)) &&
			s.IPAddress == "127.0.0.1"
	})).Return(nil)

	s, err := ledger.Create(context.Background(), userID, "tok", auth.ClientMeta{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, now, s.CreatedAt)
}

func TestSessionLedger_CreateFailure(t *testing.T) {
	repo := mocks.NewMockSessionRepository(t)
	ledger, err := auth.NewSessionLedger(repo, time.Hour)
	require.NoError(t, err)

	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	_, err = ledger.Create(context.Background(), ulid.Make(), "tok", auth.ClientMeta{})
	errutil.AssertErrorCode(t, err, "SESSION_CREATE_FAILED")
}

func TestSessionLedger_FindActive(t *testing.T) {
	now := time.Now()
	repo := mocks.NewMockSessionRepository(t)
	ledger, err := auth.NewSessionLedger(repo, time.Hour, auth.WithLedgerClock(fixedClock(now)))
	require.NoError(t, err)
	ctx := context.Background()
	userID := ulid.Make()
	want := &auth.Session{ID: ulid.Make(), UserID: userID}

	repo.On("GetActiveByTokenHash", ctx, auth.HashToken("tok"), now).Return(want, nil).Once()
	got, err := ledger.FindActiveByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Same(t, want, got)

	repo.On("GetActiveByTokenHashForUser", ctx, auth.HashToken("tok"), userID, now).
		Return(nil, auth.ErrNotFound).Once()
	_, err = ledger.FindActiveByTokenForUser(ctx, "tok", userID)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	_, err = ledger.FindActiveByToken(ctx, "")
	assert.ErrorIs(t, err, auth.ErrNotFound, "empty token never reaches storage")
}

func TestSessionLedger_RevokeIsIdempotent(t *testing.T) {
	store := authtest.NewStore()
	ledger, err := auth.NewSessionLedger(store.Sessions(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	userID := ulid.Make()

	_, err = ledger.Create(ctx, userID, "tok", auth.ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, ledger.Revoke(ctx, "tok"))
	require.NoError(t, ledger.Revoke(ctx, "tok"))
	require.NoError(t, ledger.Revoke(ctx, ""))

	_, err = ledger.FindActiveByToken(ctx, "tok")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSessionLedger_RevokeAllAndList(t *testing.T) {
	store := authtest.NewStore()
	ledger, err := auth.NewSessionLedger(store.Sessions(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	alice, bob := ulid.Make(), ulid.Make()

	for _, tok := range []string{"a1", "a2", "a3"} {
		_, err := ledger.Create(ctx, alice, tok, auth.ClientMeta{})
		require.NoError(t, err)
	}
	_, err = ledger.Create(ctx, bob, "b1", auth.ClientMeta{})
	require.NoError(t, err)

	active, err := ledger.ListActive(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	n, err := ledger.RevokeAll(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	active, err = ledger.ListActive(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = ledger.FindActiveByToken(ctx, "b1")
	assert.NoError(t, err, "other users keep their sessions")
}

func TestSessionLedger_Sweep(t *testing.T) {
	store := authtest.NewStore()
	metrics := &recordingMetrics{}
	now := time.Now()
	clock := now
	ledger, err := auth.NewSessionLedger(store.Sessions(), time.Hour,
		auth.WithLedgerClock(func() time.Time { return clock }),
		auth.WithLedgerMetrics(metrics),
		auth.WithExpiredResets(store.Resets()))
	require.NoError(t, err)
	ctx := context.Background()
	userID := ulid.Make()

	_, err = ledger.Create(ctx, userID, "old", auth.ClientMeta{})
	require.NoError(t, err)
	reset, err := auth.NewPasswordReset(userID, "h", now, now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.Resets().Create(ctx, reset))

	clock = now.Add(2 * time.Hour)
	_, err = ledger.Create(ctx, userID, "new", auth.ClientMeta{})
	require.NoError(t, err)

	n, err := ledger.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), metrics.swept.Load())
	assert.Equal(t, 1, store.SessionCount(userID))
	assert.Zero(t, store.ResetCount(userID))
}

func TestSessionLedger_SweepFailure(t *testing.T) {
	repo := mocks.NewMockSessionRepository(t)
	ledger, err := auth.NewSessionLedger(repo, time.Hour)
	require.NoError(t, err)

	repo.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), errors.New("timeout"))

	_, err = ledger.Sweep(context.Background())
	errutil.AssertErrorCode(t, err, "SESSION_SWEEP_FAILED")
}

func TestSessionLedger_RunSweeperStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := mocks.NewMockSessionRepository(t)
	ledger, err := auth.NewSessionLedger(repo, time.Hour)
	require.NoError(t, err)

	swept := make(chan struct{}, 1)
	repo.On("DeleteExpired", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		}).
		Return(int64(0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ledger.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSessionLedger_RunSweeperDisabled(t *testing.T) {
	ledger, err := auth.NewSessionLedger(authtest.NewStore().Sessions(), time.Hour)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		ledger.RunSweeper(context.Background(), 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero interval should return immediately")
	}
}
