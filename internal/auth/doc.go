// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package auth implements accounts, sessions and password recovery for the
// ticketing API.
//
// # Domain Types
//
// User, Session and PasswordReset are created through their constructors
// (NewUser, NewSession, NewPasswordReset), which validate their inputs.
// Repository implementations receive pre-validated values.
//
// # Components
//
//   - PasswordHasher - bcrypt (default) or argon2id password hashing
//   - TokenCodec - signed, expiring bearer tokens
//   - SessionLedger - server-side session records keyed by token hash
//   - Service - register, login, logout, token validation, password change
//     and reset
//
// A bearer token is only honoured while its signature verifies, it has not
// expired and an unexpired session with its hash exists for the same user.
package auth
