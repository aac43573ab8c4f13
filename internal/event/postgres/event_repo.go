// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package postgres provides the PostgreSQL event repository.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/event"
	"github.com/billetterie/billetterie/internal/store"
)

const eventColumns = `id, title, date, location, created_at`

// EventRepository implements event.Repository using PostgreSQL.
type EventRepository struct {
	pool store.Pool
}

var _ event.Repository = (*EventRepository)(nil)

// NewEventRepository creates a new EventRepository.
func NewEventRepository(pool store.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Create inserts an event.
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO events (id, title, date, location, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID.String(), e.Title, e.Date, e.Location, e.CreatedAt)
	if err != nil {
		return oops.Code("EVENT_INSERT_FAILED").
			With("operation", "insert event").
			With("event_id", e.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID returns the event with id.
func (r *EventRepository) GetByID(ctx context.Context, id ulid.ULID) (*event.Event, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id.String())
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(event.CodeNotFound).With("event_id", id.String()).Wrap(event.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("EVENT_QUERY_FAILED").
			With("operation", "get event").
			With("event_id", id.String()).
			Wrap(err)
	}
	return e, nil
}

// Upcoming returns up to limit events dated at or after from, earliest
// first. Ties break on id so the listing is stable.
func (r *EventRepository) Upcoming(ctx context.Context, from time.Time, limit int) ([]*event.Event, error) {
	rows, err := store.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE date >= $1
		ORDER BY date ASC, id ASC
		LIMIT $2
	`, from, limit)
	if err != nil {
		return nil, oops.Code("EVENT_QUERY_FAILED").With("operation", "list events").Wrap(err)
	}
	defer rows.Close()

	events := []*event.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("EVENT_QUERY_FAILED").With("operation", "iterate events").Wrap(err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*event.Event, error) {
	var (
		idStr string
		e     event.Event
	)
	if err := s.Scan(&idStr, &e.Title, &e.Date, &e.Location, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, oops.Code("EVENT_SCAN_FAILED").Wrap(err)
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("EVENT_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	e.ID = id
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}
