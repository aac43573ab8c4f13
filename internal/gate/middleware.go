// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package gate

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/pkg/errutil"
)

// ContextKey is the gin context key holding the *Identity.
const ContextKey = "identity"

// Renderer writes a denial to the client and aborts the chain.
type Renderer func(c *gin.Context, err error)

// DefaultRenderer maps gate errors to 401 or 403 with a JSON message.
func DefaultRenderer(c *gin.Context, err error) {
	status := http.StatusUnauthorized
	if errutil.HasCode(err, auth.CodeForbidden) {
		status = http.StatusForbidden
	}
	c.AbortWithStatusJSON(status, gin.H{"message": publicMessage(err)})
}

func publicMessage(err error) string {
	switch {
	case errutil.HasCode(err, auth.CodeForbidden):
		return "Insufficient permissions"
	case errutil.HasCode(err, auth.CodeInvalidToken):
		return "Invalid or expired token"
	default:
		return "Authentication required"
	}
}

// Authenticate lets public paths through and requires a valid token
// everywhere else. The identity, when present, is stored on the request
// context and under ContextKey.
func (g *Gate) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.IsPublic(c.Request.URL.Path) {
			c.Next()
			return
		}
		g.enforce(c)
	}
}

// Require authenticates the request regardless of the allowlist and
// requires one of roles. With no roles any authenticated user passes.
func (g *Gate) Require(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		g.enforce(c, roles...)
	}
}

// Authorize requires one of roles from an identity already established by
// Authenticate. It authenticates first when no identity is present.
func (g *Gate) Authorize(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c.Request.Context())
		if !ok {
			g.enforce(c, roles...)
			return
		}
		d := RequireRoles(roles...)(c.Request.Context(), Decision{Identity: id})
		if d.Err != nil {
			g.deny(c, d.Err)
			return
		}
		c.Next()
	}
}

func (g *Gate) enforce(c *gin.Context, roles ...auth.Role) {
	d := g.Check(c.Request, roles...)
	if d.Err != nil {
		g.deny(c, d.Err)
		return
	}
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), d.Identity))
	c.Set(ContextKey, d.Identity)
	c.Next()
}

func (g *Gate) deny(c *gin.Context, err error) {
	g.logger.DebugContext(c.Request.Context(), "request denied",
		"path", c.Request.URL.Path,
		"code", errutil.Code(err))
	g.render(c, err)
	if !c.IsAborted() {
		c.Abort()
	}
}

// FromGin returns the identity stored by the gate middleware.
func FromGin(c *gin.Context) (*Identity, bool) {
	if v, ok := c.Get(ContextKey); ok {
		if id, ok := v.(*Identity); ok && id != nil {
			return id, true
		}
	}
	return IdentityFrom(requestContext(c))
}

func requestContext(c *gin.Context) context.Context {
	if c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
