// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/internal/event"
	"github.com/billetterie/billetterie/pkg/errutil"
)

// CodeRateLimited marks requests rejected by the limiter.
const CodeRateLimited = "RATE_LIMITED"

const msgInvalidInput = "Invalid input"

type publicError struct {
	status  int
	message string
}

var publicErrors = map[string]publicError{
	auth.CodeValidation:         {http.StatusBadRequest, msgInvalidInput},
	auth.CodeUserExists:         {http.StatusBadRequest, "User with this email already exists"},
	auth.CodeWrongPassword:      {http.StatusBadRequest, "Current password is incorrect"},
	auth.CodeUserNotFound:       {http.StatusBadRequest, "User not found"},
	auth.CodeInvalidCredentials: {http.StatusUnauthorized, "Invalid email or password"},
	auth.CodeInvalidToken:       {http.StatusUnauthorized, "Invalid or expired token"},
	auth.CodeAuthRequired:       {http.StatusUnauthorized, "Authentication required"},
	auth.CodeForbidden:          {http.StatusForbidden, "Insufficient permissions"},
	event.CodeNotFound:          {http.StatusNotFound, "Event not found"},
	CodeRateLimited:             {http.StatusTooManyRequests, "Too many requests, please try again later."},
}

var internalError = publicError{http.StatusInternalServerError, "Internal server error"}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// resolve maps err to its status and body. Unknown codes become a 500 with
// a generic message.
func resolve(err error) (int, ErrorResponse) {
	pe, ok := publicErrors[errutil.Code(err)]
	if !ok {
		return internalError.status, ErrorResponse{Message: internalError.message}
	}
	resp := ErrorResponse{Message: pe.message}
	if pe.message == msgInvalidInput {
		resp.Errors = fieldErrors(err)
	}
	return pe.status, resp
}

func fieldErrors(err error) []FieldError {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	field, _ := oopsErr.Context()["field"].(string)
	if field == "" {
		return nil
	}
	return []FieldError{{Field: field, Message: err.Error()}}
}

// renderError writes err to the client and aborts the chain. Internal
// errors are logged with their code and context.
func (a *API) renderError(c *gin.Context, err error) {
	status, body := resolve(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(c.Request.Context(), a.logger, "request failed", err)
	}
	c.AbortWithStatusJSON(status, body)
}

func (a *API) renderInvalid(c *gin.Context, errs []FieldError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Message: msgInvalidInput, Errors: errs})
}
