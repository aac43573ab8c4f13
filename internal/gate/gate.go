// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package gate authenticates requests by bearer token and enforces role
// requirements before handlers run.
package gate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/auth"
)

// CookieName is the cookie carrying the session token.
const CookieName = "token"

// DefaultPublicPaths are reachable without a token.
var DefaultPublicPaths = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/logout",
	"/api/auth/request-reset",
	"/api/auth/reset-password",
	"/api/public/**",
	"/healthz/*",
}

// Validator resolves a token to its user and session.
type Validator interface {
	ValidateToken(ctx context.Context, token string) (*auth.User, *auth.Session, error)
}

// Identity is the authenticated principal of a request.
type Identity struct {
	User      *auth.User
	SessionID ulid.ULID
	Token     string
}

// Decision is the outcome of a Check. A non-nil Err denies the request.
type Decision struct {
	Identity *Identity
	Err      error
}

// Allowed reports whether the decision lets the request through.
func (d Decision) Allowed() bool {
	return d.Err == nil && d.Identity != nil
}

// Check refines the decision reached by the checks before it.
type Check func(ctx context.Context, d Decision) Decision

// Run applies checks in order, stopping at the first denial.
func Run(ctx context.Context, checks ...Check) Decision {
	var d Decision
	for _, check := range checks {
		d = check(ctx, d)
		if d.Err != nil {
			return d
		}
	}
	return d
}

// Authenticate resolves token through v.
// Every validation failure becomes the same AUTH_INVALID_TOKEN error.
func Authenticate(v Validator, token string) Check {
	return func(ctx context.Context, _ Decision) Decision {
		if token == "" {
			return Decision{Err: ErrAuthRequired()}
		}
		user, session, err := v.ValidateToken(ctx, token)
		if err != nil {
			return Decision{Err: ErrInvalidToken()}
		}
		return Decision{Identity: &Identity{User: user, SessionID: session.ID, Token: token}}
	}
}

// RequireRoles denies identities holding none of roles.
// With no roles any authenticated identity passes.
func RequireRoles(roles ...auth.Role) Check {
	return func(_ context.Context, d Decision) Decision {
		if d.Identity == nil || d.Identity.User == nil {
			return Decision{Err: ErrAuthRequired()}
		}
		if len(roles) > 0 && !d.Identity.User.HasRole(roles...) {
			return Decision{Identity: d.Identity, Err: ErrForbidden(roles)}
		}
		return d
	}
}

// ErrAuthRequired is returned when a request carries no token.
func ErrAuthRequired() error {
	return oops.In("gate").Code(auth.CodeAuthRequired).Errorf("Authentication required")
}

// ErrInvalidToken is returned when a token fails validation.
func ErrInvalidToken() error {
	return oops.In("gate").Code(auth.CodeInvalidToken).Errorf("Invalid or expired token")
}

// ErrForbidden is returned when an identity lacks the required roles.
func ErrForbidden(roles []auth.Role) error {
	return oops.In("gate").Code(auth.CodeForbidden).With("required_roles", roles).Errorf("Insufficient permissions")
}

// Extract reads the session token from the token cookie, falling back to an
// Authorization: Bearer header.
func Extract(r *http.Request) (string, bool) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// Gate evaluates requests against a validator and a public path allowlist.
type Gate struct {
	validator Validator
	public    []compiledPath
	render    Renderer
	logger    *slog.Logger
}

type compiledPath struct {
	pattern string
	glob    glob.Glob
}

// Option configures a Gate.
type Option func(*Gate)

// WithPublicPaths replaces the public path allowlist. Patterns use '/' as
// the segment separator, so '*' stays within a segment and '**' spans them.
func WithPublicPaths(patterns ...string) Option {
	return func(g *Gate) {
		g.public = nil
		for _, p := range patterns {
			g.public = append(g.public, compiledPath{pattern: p})
		}
	}
}

// WithRenderer sets how denials are written to the client.
func WithRenderer(r Renderer) Option {
	return func(g *Gate) { g.render = r }
}

// WithLogger sets the logger used for denials.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New creates a Gate. Returns GATE_INVALID_PATTERN if a public path does
// not compile.
func New(v Validator, opts ...Option) (*Gate, error) {
	if v == nil {
		return nil, oops.In("gate").Code("GATE_INVALID_CONFIG").Errorf("validator is required")
	}
	g := &Gate{validator: v, render: DefaultRenderer, logger: slog.Default()}
	WithPublicPaths(DefaultPublicPaths...)(g)
	for _, opt := range opts {
		opt(g)
	}
	for i, p := range g.public {
		compiled, err := glob.Compile(p.pattern, '/')
		if err != nil {
			return nil, oops.In("gate").
				Code("GATE_INVALID_PATTERN").
				With("pattern", p.pattern).
				Wrap(err)
		}
		g.public[i].glob = compiled
	}
	return g, nil
}

// IsPublic reports whether path matches the public allowlist.
func (g *Gate) IsPublic(path string) bool {
	for _, p := range g.public {
		if p.glob.Match(path) {
			return true
		}
	}
	return false
}

// Check authenticates r and requires one of roles, if any.
func (g *Gate) Check(r *http.Request, roles ...auth.Role) Decision {
	token, _ := Extract(r)
	return Run(r.Context(), Authenticate(g.validator, token), RequireRoles(roles...))
}
