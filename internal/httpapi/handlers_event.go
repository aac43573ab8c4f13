// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/billetterie/billetterie/internal/event"
)

type createEventRequest struct {
	Title    string    `json:"title" binding:"required,max=200"`
	Date     time.Time `json:"date" binding:"required"`
	Location string    `json:"location" binding:"required,max=200"`
}

func (a *API) listEvents(c *gin.Context) {
	events, err := a.events.Catalogue(c.Request.Context())
	if err != nil {
		a.renderError(c, err)
		return
	}
	out := make([]event.PublicEvent, 0, len(events))
	for _, e := range events {
		out = append(out, e.Public())
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) getEvent(c *gin.Context) {
	e, err := a.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, e.Public())
}

func (a *API) createEvent(c *gin.Context) {
	var req createEventRequest
	if !a.bind(c, &req) {
		return
	}
	e, err := a.events.Create(c.Request.Context(), req.Title, req.Date, req.Location)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e.Public())
}
