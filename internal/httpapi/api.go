// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package httpapi exposes the auth, ticket and event services over HTTP
// with gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/internal/event"
	"github.com/billetterie/billetterie/internal/gate"
	"github.com/billetterie/billetterie/internal/ratelimit"
	"github.com/billetterie/billetterie/internal/ticket"
)

// AuthService is the subset of auth.Service the API calls.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput, meta auth.ClientMeta) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string, meta auth.ClientMeta) (*auth.AuthResult, error)
	Logout(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*auth.User, *auth.Session, error)
	ChangePassword(ctx context.Context, userID ulid.ULID, oldPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ListSessions(ctx context.Context, userID ulid.ULID) ([]*auth.Session, error)
	RevokeSessions(ctx context.Context, userID ulid.ULID) (int64, error)
}

var _ AuthService = (*auth.Service)(nil)

// TicketService is the subset of ticket.Service the API calls.
type TicketService interface {
	List(ctx context.Context, viewer *auth.User) ([]*ticket.Ticket, error)
	Create(ctx context.Context, userID ulid.ULID, eventID string, price float64) (*ticket.Ticket, error)
}

// EventService is the subset of event.Service the API calls.
type EventService interface {
	Catalogue(ctx context.Context) ([]*event.Event, error)
	Get(ctx context.Context, id string) (*event.Event, error)
	Create(ctx context.Context, title string, date time.Time, location string) (*event.Event, error)
}

var _ EventService = (*event.Service)(nil)

// Metrics records request outcomes. observability.Metrics implements it.
type Metrics interface {
	RecordHTTPRequest(method, route string, status int)
	RecordRateLimited(route string)
}

type noopMetrics struct{}

func (noopMetrics) RecordHTTPRequest(string, string, int) {}
func (noopMetrics) RecordRateLimited(string)              {}

// Options configures the API.
type Options struct {
	Auth    AuthService
	Tickets TicketService
	// Events serves the public catalogue. Nil leaves the event routes
	// unmounted.
	Events EventService
	// Limiter guards the credential endpoints. Nil disables limiting.
	Limiter ratelimit.Limiter
	Metrics Metrics
	Logger  *slog.Logger
	// Health, when set, is mounted under /healthz/.
	Health http.Handler
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// SessionTTL is the cookie lifetime. Zero uses auth.DefaultSessionTTL.
	SessionTTL time.Duration
	// TrustedProxies are the proxies whose forwarding headers set the
	// client IP. Nil trusts none.
	TrustedProxies []string
}

// API holds the handlers and their dependencies.
type API struct {
	auth          AuthService
	tickets       TicketService
	events        EventService
	limiter       ratelimit.Limiter
	metrics       Metrics
	logger        *slog.Logger
	gate          *gate.Gate
	secureCookies bool
	sessionTTL    time.Duration
	proxies       []string
	health        http.Handler
	methods       map[string][]string
}

// New validates opts and builds the API.
func New(opts Options) (*API, error) {
	if opts.Auth == nil || opts.Tickets == nil {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").Errorf("auth and ticket services are required")
	}
	a := &API{
		auth:          opts.Auth,
		tickets:       opts.Tickets,
		events:        opts.Events,
		limiter:       opts.Limiter,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		secureCookies: opts.SecureCookies,
		sessionTTL:    opts.SessionTTL,
		proxies:       opts.TrustedProxies,
		health:        opts.Health,
		methods:       make(map[string][]string),
	}
	if a.limiter == nil {
		a.limiter = ratelimit.Noop{}
	}
	if a.metrics == nil {
		a.metrics = noopMetrics{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.sessionTTL <= 0 {
		a.sessionTTL = auth.DefaultSessionTTL
	}

	g, err := gate.New(opts.Auth, gate.WithRenderer(a.renderError), gate.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.gate = g
	return a, nil
}

// Handler builds the gin engine serving every route.
func (a *API) Handler() (*gin.Engine, error) {
	useJSONFieldNames()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	if err := r.SetTrustedProxies(a.proxies); err != nil {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").With("trusted_proxies", a.proxies).Wrap(err)
	}

	r.Use(a.recovery(), a.requestLog())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Not found"})
	})
	r.NoMethod(a.methodNotAllowed)

	limited := a.rateLimit()

	api := r.Group("/api", a.gate.Authenticate())
	authGroup := api.Group("/auth")
	a.route(authGroup, http.MethodPost, "/register", limited, a.register)
	a.route(authGroup, http.MethodPost, "/login", limited, a.login)
	a.route(authGroup, http.MethodPost, "/logout", a.logout)
	a.route(authGroup, http.MethodGet, "/me", a.me)
	a.route(authGroup, http.MethodPost, "/change-password", a.changePassword)
	a.route(authGroup, http.MethodPost, "/request-reset", limited, a.requestReset)
	a.route(authGroup, http.MethodPost, "/reset-password", limited, a.resetPassword)

	a.route(api, http.MethodGet, "/tickets", a.listTickets)
	a.route(api, http.MethodPost, "/tickets", a.createTicket)

	admin := api.Group("/admin", a.gate.Authorize(auth.RoleAdmin))
	a.route(admin, http.MethodGet, "/users/:id/sessions", a.listSessions)
	a.route(admin, http.MethodDelete, "/users/:id/sessions", a.revokeSessions)

	if a.events != nil {
		public := api.Group("/public")
		a.route(public, http.MethodGet, "/events", a.listEvents)
		a.route(public, http.MethodGet, "/events/:id", a.getEvent)
		a.route(admin, http.MethodPost, "/events", a.createEvent)
	}

	if a.health != nil {
		health := r.Group("/healthz")
		a.route(health, http.MethodGet, "/liveness", gin.WrapH(a.health))
		a.route(health, http.MethodGet, "/readiness", gin.WrapH(a.health))
	}
	return r, nil
}

// NewHandler is New followed by Handler.
func NewHandler(opts Options) (http.Handler, error) {
	a, err := New(opts)
	if err != nil {
		return nil, err
	}
	return a.Handler()
}

func (a *API) route(g *gin.RouterGroup, method, path string, handlers ...gin.HandlerFunc) {
	g.Handle(method, path, handlers...)
	full := joinPath(g.BasePath(), path)
	a.methods[full] = append(a.methods[full], method)
}
