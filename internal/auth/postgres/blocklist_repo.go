// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package postgres

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/internal/store"
)

// BlockListRepository implements auth.BlockList over the blocked_users table.
type BlockListRepository struct {
	pool store.Pool
}

var _ auth.BlockList = (*BlockListRepository)(nil)

// NewBlockListRepository creates a new BlockListRepository.
func NewBlockListRepository(pool store.Pool) *BlockListRepository {
	return &BlockListRepository{pool: pool}
}

// IsBlocked reports whether userID has a blocked_users row.
func (r *BlockListRepository) IsBlocked(ctx context.Context, userID ulid.ULID) (bool, error) {
	var blocked bool
	err := store.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocked_users WHERE user_id = $1)`,
		userID.String()).Scan(&blocked)
	if err != nil {
		return false, oops.Code("BLOCKLIST_CHECK_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return blocked, nil
}

// Block bars userID from signing in. Blocking twice updates the reason.
func (r *BlockListRepository) Block(ctx context.Context, userID ulid.ULID, reason string) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO blocked_users (user_id, reason)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET reason = EXCLUDED.reason
	`, userID.String(), reason)
	if err != nil {
		return oops.Code("BLOCKLIST_UPDATE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// Unblock lifts a block. Unblocking a user that is not blocked succeeds.
func (r *BlockListRepository) Unblock(ctx context.Context, userID ulid.ULID) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM blocked_users WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("BLOCKLIST_UPDATE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}
