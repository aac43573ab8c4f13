// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package postgres provides the PostgreSQL ticket repository.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/store"
	"github.com/billetterie/billetterie/internal/ticket"
)

// TicketRepository implements ticket.Repository using PostgreSQL.
type TicketRepository struct {
	pool store.Pool
}

var _ ticket.Repository = (*TicketRepository)(nil)

// NewTicketRepository creates a new TicketRepository.
func NewTicketRepository(pool store.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

// Create inserts a ticket.
func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO tickets (id, user_id, event_id, price_cents, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID.String(), t.UserID.String(), t.EventID, t.PriceCents, t.CreatedAt)
	if err != nil {
		return oops.Code("TICKET_INSERT_FAILED").
			With("operation", "insert ticket").
			With("user_id", t.UserID.String()).
			Wrap(err)
	}
	return nil
}

// List returns every ticket, newest first.
func (r *TicketRepository) List(ctx context.Context) ([]*ticket.Ticket, error) {
	rows, err := store.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, user_id, event_id, price_cents, created_at
		FROM tickets
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, oops.Code("TICKET_QUERY_FAILED").With("operation", "list tickets").Wrap(err)
	}
	return collect(rows)
}

// ListByUser returns the tickets of userID, newest first.
func (r *TicketRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]*ticket.Ticket, error) {
	rows, err := store.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, user_id, event_id, price_cents, created_at
		FROM tickets
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID.String())
	if err != nil {
		return nil, oops.Code("TICKET_QUERY_FAILED").
			With("operation", "list tickets by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*ticket.Ticket, error) {
	defer rows.Close()

	tickets := []*ticket.Ticket{}
	for rows.Next() {
		var (
			idStr, userIDStr string
			t                ticket.Ticket
		)
		if err := rows.Scan(&idStr, &userIDStr, &t.EventID, &t.PriceCents, &t.CreatedAt); err != nil {
			return nil, oops.Code("TICKET_SCAN_FAILED").Wrap(err)
		}
		var err error
		if t.ID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("TICKET_SCAN_FAILED").With("id", idStr).Wrap(err)
		}
		if t.UserID, err = ulid.Parse(userIDStr); err != nil {
			return nil, oops.Code("TICKET_SCAN_FAILED").With("user_id", userIDStr).Wrap(err)
		}
		t.CreatedAt = t.CreatedAt.UTC()
		tickets = append(tickets, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TICKET_QUERY_FAILED").With("operation", "iterate tickets").Wrap(err)
	}
	return tickets, nil
}
