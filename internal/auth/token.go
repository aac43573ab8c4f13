// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token purposes. A token issued for one purpose is rejected by
// VerifyPurpose for any other.
const (
	PurposeSession = "session"
	PurposeReset   = "reset"
)

// TokenPayload is the verified content of a token.
type TokenPayload struct {
	ID        string
	UserID    ulid.ULID
	Email     string
	Purpose   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	UserID  string `json:"uid"`
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256-signed bearer tokens.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for issue and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec creates a codec signing with secret. An empty secret is a
// configuration error.
func NewTokenCodec(secret string, opts ...CodecOption) (*TokenCodec, error) {
	if secret == "" {
		return nil, oops.Code(CodeConfigInvalid).Errorf("token signing secret is required")
	}
	c := &TokenCodec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token for userID that expires ttl from now.
func (c *TokenCodec) Issue(userID ulid.ULID, email, purpose string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", oops.Code("TOKEN_TTL_INVALID").With("ttl", ttl).Errorf("token ttl must be positive")
	}
	now := c.now()
	claims := tokenClaims{
		UserID:  userID.String(),
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its payload.
// Every failure, including malformed input, yields AUTH_INVALID_TOKEN.
func (c *TokenCodec) Verify(token string) (*TokenPayload, error) {
	if token == "" {
		return nil, errInvalidToken(nil)
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, errInvalidToken(err)
	}

	userID, err := ulid.Parse(claims.UserID)
	if err != nil {
		return nil, errInvalidToken(err)
	}

	payload := &TokenPayload{
		ID:        claims.ID,
		UserID:    userID,
		Email:     claims.Email,
		Purpose:   claims.Purpose,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	return payload, nil
}

// VerifyPurpose is Verify plus a check that the token was issued for
// purpose.
func (c *TokenCodec) VerifyPurpose(token, purpose string) (*TokenPayload, error) {
	payload, err := c.Verify(token)
	if err != nil {
		return nil, err
	}
	if payload.Purpose != purpose {
		return nil, oops.Code(CodeInvalidToken).
			With("purpose", payload.Purpose).
			Errorf("invalid or expired token")
	}
	return payload, nil
}
