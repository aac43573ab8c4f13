// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
)

// AssertErrorCode marks t failed unless err carries code. It reports
// whether the check passed.
func AssertErrorCode(t testing.TB, err error, code string) bool {
	t.Helper()
	if !assert.Error(t, err, "want an error coded %s", code) {
		return false
	}
	return assert.Equal(t, code, Code(err), "code of %q", err.Error())
}

// RequireErrorCode is AssertErrorCode that stops the test on failure.
func RequireErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	if !AssertErrorCode(t, err, code) {
		t.FailNow()
	}
}

// AssertErrorContext marks t failed unless err is an oops error whose
// context maps key to value.
func AssertErrorContext(t testing.TB, err error, key string, value any) bool {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	if !assert.True(t, ok, "want an oops error, got %T", err) {
		return false
	}
	got, present := oopsErr.Context()[key]
	if !assert.True(t, present, "context has no %q key", key) {
		return false
	}
	return assert.Equal(t, value, got, "context[%q]", key)
}

// AssertFieldError checks a rejected input: err carries code and names
// field in its context.
func AssertFieldError(t testing.TB, err error, code, field string) bool {
	t.Helper()
	return AssertErrorCode(t, err, code) && AssertErrorContext(t, err, "field", field)
}
