// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package event holds the public event catalogue tickets are sold for.
package event

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/pkg/errutil"
)

// CatalogueSize is how many events the public listing returns.
const CatalogueSize = 10

const (
	maxTitleLen    = 200
	maxLocationLen = 200
)

// CodeNotFound marks lookups of an unknown event.
const CodeNotFound = "EVENT_NOT_FOUND"

// ErrNotFound is returned by repositories when an event does not exist.
var ErrNotFound = errors.New("event not found")

// Event is a dated happening at a location.
type Event struct {
	ID        ulid.ULID
	Title     string
	Date      time.Time
	Location  string
	CreatedAt time.Time
}

// PublicEvent is the JSON form of an Event.
type PublicEvent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Location string    `json:"location"`
}

// Public returns the JSON view of e.
func (e *Event) Public() PublicEvent {
	return PublicEvent{ID: e.ID.String(), Title: e.Title, Date: e.Date, Location: e.Location}
}

// NewEvent creates a validated Event. Title and location are trimmed.
func NewEvent(title string, date time.Time, location string) (*Event, error) {
	title = strings.TrimSpace(title)
	location = strings.TrimSpace(location)
	switch {
	case title == "":
		return nil, invalid("title", "title is required")
	case utf8.RuneCountInString(title) > maxTitleLen:
		return nil, invalid("title", "title is too long")
	case date.IsZero():
		return nil, invalid("date", "date is required")
	case location == "":
		return nil, invalid("location", "location is required")
	case utf8.RuneCountInString(location) > maxLocationLen:
		return nil, invalid("location", "location is too long")
	}
	return &Event{
		ID:        ulid.Make(),
		Title:     title,
		Date:      date.UTC(),
		Location:  location,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func invalid(field, msg string) error {
	return oops.Code(auth.CodeValidation).With("field", field).Errorf("%s", msg)
}

// Repository persists events.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	// GetByID returns ErrNotFound when no event has id.
	GetByID(ctx context.Context, id ulid.ULID) (*Event, error)
	// Upcoming returns up to limit events dated at or after from, earliest
	// first.
	Upcoming(ctx context.Context, from time.Time, limit int) ([]*Event, error)
}

// Service serves the catalogue.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source deciding which events are upcoming.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. A nil logger uses slog.Default.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("EVENT_INVALID_CONFIG").Errorf("event repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Catalogue returns the next CatalogueSize events that have not started.
func (s *Service) Catalogue(ctx context.Context) ([]*Event, error) {
	events, err := s.repo.Upcoming(ctx, s.now().UTC(), CatalogueSize)
	if err != nil {
		return nil, oops.Code("EVENT_LIST_FAILED").Wrap(err)
	}
	return events, nil
}

// Get returns the event with id. A malformed id is reported as not found.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	parsed, err := ulid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, oops.Code(CodeNotFound).With("event_id", id).Errorf("event not found")
	}
	e, err := s.repo.GetByID(ctx, parsed)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code(CodeNotFound).With("event_id", id).Errorf("event not found")
	}
	if err != nil {
		return nil, oops.Code("EVENT_LOOKUP_FAILED").With("event_id", id).Wrap(err)
	}
	return e, nil
}

// Exists reports whether id names a catalogued event.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errutil.HasCode(err, CodeNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Create adds an event to the catalogue.
func (s *Service) Create(ctx context.Context, title string, date time.Time, location string) (*Event, error) {
	e, err := NewEvent(title, date, location)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, oops.Code("EVENT_CREATE_FAILED").With("title", e.Title).Wrap(err)
	}
	s.logger.InfoContext(ctx, "event created", "event_id", e.ID.String(), "date", e.Date)
	return e, nil
}
