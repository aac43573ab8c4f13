// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by repositories when a unique constraint rejects
// a write.
var ErrDuplicate = errors.New("duplicate")

// Error codes the HTTP layer maps to status codes.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeUserExists         = "AUTH_USER_EXISTS"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeWrongPassword      = "AUTH_WRONG_PASSWORD"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeForbidden          = "AUTH_FORBIDDEN"
	CodeConfigInvalid      = "CONFIG_INVALID"
)

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func errInvalidToken(cause error) error {
	if cause == nil {
		return oops.Code(CodeInvalidToken).Errorf("invalid or expired token")
	}
	return oops.Code(CodeInvalidToken).Wrapf(cause, "invalid or expired token")
}

func errValidation(field, msg string) error {
	return oops.Code(CodeValidation).With("field", field).Errorf("%s", msg)
}
