// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/pkg/errutil"
)

const testSecret = "test-signing-secret-0123456789abcdef"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewTokenCodec_RequiresSecret(t *testing.T) {
	_, err := auth.NewTokenCodec("")
	errutil.AssertErrorCode(t, err, auth.CodeConfigInvalid)
}

func TestTokenCodec_IssueAndVerify(t *testing.T) {
	codec, err := auth.NewTokenCodec(testSecret)
	require.NoError(t, err)

	userID := ulid.Make()
	token, err := codec.Issue(userID, "a@b.c", auth.PurposeSession, time.Hour)
	require.NoError(t, err)

	payload, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, payload.UserID)
	assert.Equal(t, "a@b.c", payload.Email)
	assert.Equal(t, auth.PurposeSession, payload.Purpose)
	assert.NotEmpty(t, payload.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), payload.ExpiresAt, 2*time.Second)
}

func TestTokenCodec_TokensIssuedTogetherDiffer(t *testing.T) {
	codec, err := auth.NewTokenCodec(testSecret, auth.WithClock(fixedClock(time.Unix(1_700_000_000, 0))))
	require.NoError(t, err)

	userID := ulid.Make()
	first, err := codec.Issue(userID, "a@b.c", auth.PurposeSession, time.Hour)
	require.NoError(t, err)
	second, err := codec.Issue(userID, "a@b.c", auth.PurposeSession, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenCodec_IssueRejectsNonPositiveTTL(t *testing.T) {
	codec, err := auth.NewTokenCodec(testSecret)
	require.NoError(t, err)

	_, err = codec.Issue(ulid.Make(), "a@b.c", auth.PurposeSession, 0)
	errutil.AssertErrorCode(t, err, "TOKEN_TTL_INVALID")
}

func TestTokenCodec_Expiry(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	issuer, err := auth.NewTokenCodec(testSecret, auth.WithClock(fixedClock(issuedAt)))
	require.NoError(t, err)

	token, err := issuer.Issue(ulid.Make(), "a@b.c", auth.PurposeSession, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"just issued", issuedAt, true},
		{"one second before expiry", issuedAt.Add(time.Hour - time.Second), true},
		{"at expiry", issuedAt.Add(time.Hour), false},
		{"after expiry", issuedAt.Add(2 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier, err := auth.NewTokenCodec(testSecret, auth.WithClock(fixedClock(tt.at)))
			require.NoError(t, err)

			_, err = verifier.Verify(token)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
			}
		})
	}
}

func TestTokenCodec_RejectsFutureIssuedAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	future, err := auth.NewTokenCodec(testSecret, auth.WithClock(fixedClock(now.Add(time.Hour))))
	require.NoError(t, err)
	token, err := future.Issue(ulid.Make(), "a@b.c", auth.PurposeSession, 2*time.Hour)
	require.NoError(t, err)

	verifier, err := auth.NewTokenCodec(testSecret, auth.WithClock(fixedClock(now)))
	require.NoError(t, err)
	_, err = verifier.Verify(token)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
}

func TestTokenCodec_RejectsForeignTokens(t *testing.T) {
	codec, err := auth.NewTokenCodec(testSecret)
	require.NoError(t, err)

	claims := jwt.MapClaims{
		"uid":     ulid.Make().String(),
		"purpose": auth.PurposeSession,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}

	other, err := auth.NewTokenCodec("another-secret")
	require.NoError(t, err)
	otherToken, err := other.Issue(ulid.Make(), "a@b.c", auth.PurposeSession, time.Hour)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512Token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noUID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": ulid.Make().String(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"different secret":  otherToken,
		"alg none":          noneToken,
		"other hmac method": hs512Token,
		"missing uid":       noUID,
		"missing exp":       noExp,
		"empty":             "",
		"garbage":           "not-a-token",
		"three dots":        "a.b.c",
		"only separators":   "..",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := codec.Verify(token)
				errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
			})
		})
	}
}

func TestTokenCodec_VerifyPurpose(t *testing.T) {
	codec, err := auth.NewTokenCodec(testSecret)
	require.NoError(t, err)

	reset, err := codec.Issue(ulid.Make(), "a@b.c", auth.PurposeReset, time.Hour)
	require.NoError(t, err)

	_, err = codec.VerifyPurpose(reset, auth.PurposeReset)
	require.NoError(t, err)

	_, err = codec.VerifyPurpose(reset, auth.PurposeSession)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
}
