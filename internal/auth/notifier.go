// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth

import (
	"context"
	"log/slog"
	"time"
)

// ResetNotifier delivers password reset tokens to users.
type ResetNotifier interface {
	SendReset(ctx context.Context, user *User, token string, expiresAt time.Time) error
}

// LogNotifier writes reset notices to a logger instead of sending mail.
// The token itself is only logged when RevealToken is set, which is meant
// for local development.
type LogNotifier struct {
	Logger      *slog.Logger
	RevealToken bool
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger, revealToken bool) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger, RevealToken: revealToken}
}

// SendReset logs the notice.
func (n *LogNotifier) SendReset(ctx context.Context, user *User, token string, expiresAt time.Time) error {
	attrs := []any{
		"user_id", user.ID.String(),
		"email", user.Email,
		"expires_at", expiresAt,
	}
	if n.RevealToken {
		// The reset_link key is not in the redaction list, unlike token.
		attrs = append(attrs, "reset_link", "/reset-password?token="+token)
	}
	n.Logger.InfoContext(ctx, "password reset requested", attrs...)
	return nil
}
