// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth

// Operation outcomes reported to Metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Metrics receives operation outcomes. observability.Metrics implements it.
type Metrics interface {
	RecordAuthOperation(operation, outcome string)
	RecordSessionsSwept(n int64)
}

type noopMetrics struct{}

func (noopMetrics) RecordAuthOperation(string, string) {}
func (noopMetrics) RecordSessionsSwept(int64)          {}
