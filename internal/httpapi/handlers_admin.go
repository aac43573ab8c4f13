// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/billetterie/billetterie/internal/auth"
)

func (a *API) userParam(c *gin.Context) (ulid.ULID, bool) {
	id, err := ulid.Parse(c.Param("id"))
	if err != nil {
		a.renderInvalid(c, []FieldError{{Field: "id", Message: "id must be a user id"}})
		return ulid.ULID{}, false
	}
	return id, true
}

func (a *API) listSessions(c *gin.Context) {
	userID, ok := a.userParam(c)
	if !ok {
		return
	}
	sessions, err := a.auth.ListSessions(c.Request.Context(), userID)
	if err != nil {
		a.renderError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*auth.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (a *API) revokeSessions(c *gin.Context) {
	userID, ok := a.userParam(c)
	if !ok {
		return
	}
	n, err := a.auth.RevokeSessions(c.Request.Context(), userID)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sessions revoked", "revoked": n})
}
