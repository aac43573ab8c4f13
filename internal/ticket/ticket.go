// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package ticket manages tickets bought by authenticated users.
package ticket

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/auth"
)

// Ticket is a seat purchased for an event. Prices are held in cents.
type Ticket struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	EventID    string
	PriceCents int64
	CreatedAt  time.Time
}

// PublicTicket is the JSON form of a Ticket.
type PublicTicket struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	EventID   string    `json:"eventId"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public returns the JSON view of t.
func (t *Ticket) Public() PublicTicket {
	return PublicTicket{
		ID:        t.ID.String(),
		UserID:    t.UserID.String(),
		EventID:   t.EventID,
		Price:     float64(t.PriceCents) / 100,
		CreatedAt: t.CreatedAt,
	}
}

// PriceToCents converts a decimal price to cents, rounding half away from zero.
// Returns VALIDATION_FAILED unless the result is positive.
func PriceToCents(price float64) (int64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price > math.MaxInt64/100 {
		return 0, invalid("price", "price must be a finite number")
	}
	cents := int64(math.Round(price * 100))
	if cents <= 0 {
		return 0, invalid("price", "price must be positive")
	}
	return cents, nil
}

// NewTicket creates a validated Ticket.
func NewTicket(userID ulid.ULID, eventID string, price float64) (*Ticket, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TICKET_INVALID_USER").Errorf("user id is required")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, invalid("eventId", "eventId is required")
	}
	cents, err := PriceToCents(price)
	if err != nil {
		return nil, err
	}
	return &Ticket{
		ID:         ulid.Make(),
		UserID:     userID,
		EventID:    eventID,
		PriceCents: cents,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func invalid(field, msg string) error {
	return oops.Code(auth.CodeValidation).With("field", field).Errorf("%s", msg)
}

// Repository persists tickets.
type Repository interface {
	Create(ctx context.Context, t *Ticket) error
	// List returns every ticket, newest first.
	List(ctx context.Context) ([]*Ticket, error)
	// ListByUser returns the tickets of userID, newest first.
	ListByUser(ctx context.Context, userID ulid.ULID) ([]*Ticket, error)
}

// EventChecker reports whether an event id is known. event.Service
// implements it.
type EventChecker interface {
	Exists(ctx context.Context, eventID string) (bool, error)
}

// Service implements ticket listing and purchase.
type Service struct {
	repo   Repository
	events EventChecker
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEventChecker makes Create reject tickets for unknown events.
func WithEventChecker(events EventChecker) Option {
	return func(s *Service) { s.events = events }
}

// NewService creates a Service. A nil logger uses slog.Default.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("TICKET_INVALID_CONFIG").Errorf("ticket repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns the tickets visible to viewer: all of them for admins,
// otherwise only the viewer's own.
func (s *Service) List(ctx context.Context, viewer *auth.User) ([]*Ticket, error) {
	if viewer == nil {
		return nil, oops.Code(auth.CodeAuthRequired).Errorf("Authentication required")
	}
	var (
		tickets []*Ticket
		err     error
	)
	if viewer.HasRole(auth.RoleAdmin) {
		tickets, err = s.repo.List(ctx)
	} else {
		tickets, err = s.repo.ListByUser(ctx, viewer.ID)
	}
	if err != nil {
		return nil, oops.Code("TICKET_LIST_FAILED").With("user_id", viewer.ID.String()).Wrap(err)
	}
	return tickets, nil
}

// Create records a ticket for userID.
func (s *Service) Create(ctx context.Context, userID ulid.ULID, eventID string, price float64) (*Ticket, error) {
	t, err := NewTicket(userID, eventID, price)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		known, err := s.events.Exists(ctx, t.EventID)
		if err != nil {
			return nil, oops.Code("TICKET_CREATE_FAILED").With("event_id", t.EventID).Wrap(err)
		}
		if !known {
			return nil, invalid("eventId", "event does not exist")
		}
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, oops.Code("TICKET_CREATE_FAILED").
			With("user_id", userID.String()).
			With("event_id", t.EventID).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "ticket created",
		"ticket_id", t.ID.String(),
		"user_id", userID.String(),
		"event_id", t.EventID)
	return t, nil
}
