// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package gate

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billetterie/billetterie/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, v Validator) *gin.Engine {
	t.Helper()
	g, err := New(v)
	require.NoError(t, err)

	r := gin.New()
	r.Use(g.Authenticate())
	whoami := func(c *gin.Context) {
		id, ok := FromGin(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": id.User.Email})
	}
	r.POST("/api/auth/logout", whoami)
	r.GET("/api/auth/me", whoami)
	r.GET("/api/admin/ping", g.Authorize(auth.RoleAdmin), whoami)
	r.GET("/api/public/staff", g.Require(auth.RoleOrganizer), whoami)
	return r
}

func serve(r http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	admin := newUser(auth.RoleAdmin)
	user := newUser(auth.RoleUser)
	organizer := newUser(auth.RoleOrganizer)
	v := &stubValidator{tokens: map[string]*auth.User{"admin": admin, "user": user, "org": organizer}}
	r := newRouter(t, v)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		body   string
	}{
		{"public path without token", http.MethodPost, "/api/auth/logout", "", http.StatusOK, `{"anonymous":true}`},
		{"protected path without token", http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized, `{"message":"Authentication required"}`},
		{"protected path with bad token", http.MethodGet, "/api/auth/me", "nope", http.StatusUnauthorized, `{"message":"Invalid or expired token"}`},
		{"protected path with token", http.MethodGet, "/api/auth/me", "user", http.StatusOK, `{"email":"USER@example.com"}`},
		{"admin route as user", http.MethodGet, "/api/admin/ping", "user", http.StatusForbidden, `{"message":"Insufficient permissions"}`},
		{"admin route as admin", http.MethodGet, "/api/admin/ping", "admin", http.StatusOK, `{"email":"ADMIN@example.com"}`},
		{"require ignores the allowlist", http.MethodGet, "/api/public/staff", "", http.StatusUnauthorized, `{"message":"Authentication required"}`},
		{"require with role", http.MethodGet, "/api/public/staff", "org", http.StatusOK, `{"email":"ORGANIZER@example.com"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestMiddleware_CustomRenderer(t *testing.T) {
	g, err := New(&stubValidator{}, WithRenderer(func(c *gin.Context, err error) {
		c.String(http.StatusTeapot, err.Error())
	}))
	require.NoError(t, err)

	r := gin.New()
	r.GET("/x", g.Require(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "Authentication required", w.Body.String())
}
