// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package authtest

import (
	"strings"

	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/auth"
)

const plainPrefix = "plain$"

// PlainHasher stores passwords in the clear behind a prefix. It keeps
// service tests fast and must never be used outside tests.
type PlainHasher struct {
	// Upgrade makes NeedsUpgrade report true for every hash.
	Upgrade bool
}

var _ auth.PasswordHasher = PlainHasher{}

// Hash returns the prefixed password.
func (PlainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return plainPrefix + password, nil
}

// Verify compares the password with the stored value.
func (PlainHasher) Verify(password, hash string) (bool, error) {
	stored, ok := strings.CutPrefix(hash, plainPrefix)
	if !ok {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("not a plain hash")
	}
	return stored == password, nil
}

// NeedsUpgrade returns h.Upgrade.
func (h PlainHasher) NeedsUpgrade(string) bool {
	return h.Upgrade
}
