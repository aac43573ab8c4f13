// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
//
// Every repository resolves its connection through store.Conn, so calls made
// with a context from store.Transactor.InTransaction join that transaction.
package postgres
