// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/pkg/errutil"
)

func TestNewSession(t *testing.T) {
	now := time.Now()
	userID := ulid.Make()
	meta := auth.ClientMeta{IPAddress: "10.0.0.1", UserAgent: "curl/8"}

	t.Run("valid", func(t *testing.T) {
		s, err := auth.NewSession(userID, "hash", meta, now, now.Add(time.Hour))
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, s.ID)
		assert.Equal(t, userID, s.UserID)
		assert.Equal(t, "10.0.0.1", s.IPAddress)
		assert.Equal(t, "curl/8", s.UserAgent)
	})

	tests := []struct {
		name    string
		userID  ulid.ULID
		hash    string
		expires time.Time
		code    string
	}{
		{"zero user", ulid.ULID{}, "hash", now.Add(time.Hour), "SESSION_INVALID_USER"},
		{"empty hash", userID, "", now.Add(time.Hour), "SESSION_INVALID_HASH"},
		{"expiry not after creation", userID, "hash", now, "SESSION_INVALID_EXPIRY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewSession(tt.userID, tt.hash, meta, now, tt.expires)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestSession_ActiveAt(t *testing.T) {
	now := time.Now()
	s, err := auth.NewSession(ulid.Make(), "hash", auth.ClientMeta{}, now, now.Add(time.Minute))
	require.NoError(t, err)

	assert.True(t, s.ActiveAt(now))
	assert.True(t, s.ActiveAt(now.Add(time.Minute-time.Nanosecond)))
	assert.False(t, s.ActiveAt(now.Add(time.Minute)), "expiry equal to now is expired")
	assert.False(t, s.ActiveAt(now.Add(time.Hour)))
}

func TestHashToken(t *testing.T) {
	h := auth.HashToken("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
	assert.NotEqual(t, h, auth.HashToken("abd"))
}

func TestNewPasswordReset(t *testing.T) {
	now := time.Now()
	r, err := auth.NewPasswordReset(ulid.Make(), "hash", now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, r.ActiveAt(now))
	assert.False(t, r.ActiveAt(now.Add(time.Hour)))

	_, err = auth.NewPasswordReset(ulid.ULID{}, "hash", now, now.Add(time.Hour))
	errutil.AssertErrorCode(t, err, "RESET_INVALID_USER")
	_, err = auth.NewPasswordReset(ulid.Make(), "", now, now.Add(time.Hour))
	errutil.AssertErrorCode(t, err, "RESET_INVALID_HASH")
	_, err = auth.NewPasswordReset(ulid.Make(), "hash", now, now.Add(-time.Second))
	errutil.AssertErrorCode(t, err, "RESET_INVALID_EXPIRY")
}
