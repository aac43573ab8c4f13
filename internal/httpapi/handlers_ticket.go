// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/billetterie/billetterie/internal/ticket"
)

type createTicketRequest struct {
	EventID string  `json:"eventId" binding:"required"`
	Price   float64 `json:"price" binding:"required,gt=0"`
}

func (a *API) listTickets(c *gin.Context) {
	id, err := requireIdentity(c)
	if err != nil {
		a.renderError(c, err)
		return
	}
	tickets, err := a.tickets.List(c.Request.Context(), id.User)
	if err != nil {
		a.renderError(c, err)
		return
	}
	out := make([]ticket.PublicTicket, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.Public())
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) createTicket(c *gin.Context) {
	id, err := requireIdentity(c)
	if err != nil {
		a.renderError(c, err)
		return
	}
	var req createTicketRequest
	if !a.bind(c, &req) {
		return
	}
	t, err := a.tickets.Create(c.Request.Context(), id.User.ID, req.EventID, req.Price)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t.Public())
}
