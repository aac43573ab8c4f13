// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

//go:build tools

// Package main pins the modules that only tests and integration builds
// import, so they stay in go.mod at the versions CI runs with.
package main

import (
	// BDD suites under test/integration.
	_ "github.com/onsi/ginkgo/v2"
	_ "github.com/onsi/gomega"

	// Throwaway PostgreSQL and Redis for integration runs.
	_ "github.com/alicebob/miniredis/v2"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"

	// Unit test doubles and assertions.
	_ "github.com/pashagolub/pgxmock/v4"
	_ "github.com/stretchr/testify/mock"
	_ "github.com/stretchr/testify/require"
	_ "go.uber.org/goleak"
)
