// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/internal/gate"
	"github.com/billetterie/billetterie/pkg/errutil"
)

// Response messages of the auth endpoints.
const (
	MsgLoggedOut       = "Logged out successfully"
	MsgPasswordChanged = "Password changed successfully"
	MsgResetRequested  = "If your email exists in our system, you will receive a password reset link"
	MsgPasswordReset   = "Password reset successfully"
)

type registerRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=6"`
	Name     *string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

type requestResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required,min=10"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func clientMeta(c *gin.Context) auth.ClientMeta {
	return auth.ClientMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (a *API) register(c *gin.Context) {
	var req registerRequest
	if !a.bind(c, &req) {
		return
	}
	result, err := a.auth.Register(c.Request.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}, clientMeta(c))
	if err != nil {
		a.renderError(c, err)
		return
	}
	a.setSessionCookie(c, result.Token)
	c.JSON(http.StatusCreated, result)
}

func (a *API) login(c *gin.Context) {
	var req loginRequest
	if !a.bind(c, &req) {
		return
	}
	result, err := a.auth.Login(c.Request.Context(), req.Email, req.Password, clientMeta(c))
	if err != nil {
		a.renderError(c, err)
		return
	}
	a.setSessionCookie(c, result.Token)
	c.JSON(http.StatusOK, result)
}

// logout revokes the presented session, if any, and always clears the cookie.
func (a *API) logout(c *gin.Context) {
	if token, ok := gate.Extract(c.Request); ok {
		if err := a.auth.Logout(c.Request.Context(), token); err != nil {
			a.renderError(c, err)
			return
		}
	}
	a.clearSessionCookie(c)
	c.JSON(http.StatusOK, messageResponse{Message: MsgLoggedOut})
}

func (a *API) me(c *gin.Context) {
	id, err := requireIdentity(c)
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": id.User.Public()})
}

func (a *API) changePassword(c *gin.Context) {
	id, err := requireIdentity(c)
	if err != nil {
		a.renderError(c, err)
		return
	}
	var req changePasswordRequest
	if !a.bind(c, &req) {
		return
	}
	if err := a.auth.ChangePassword(c.Request.Context(), id.User.ID, req.OldPassword, req.NewPassword); err != nil {
		a.renderError(c, err)
		return
	}
	a.clearSessionCookie(c)
	c.JSON(http.StatusOK, messageResponse{Message: MsgPasswordChanged})
}

// requestReset answers identically whether or not the email is registered.
func (a *API) requestReset(c *gin.Context) {
	var req requestResetRequest
	if !a.bind(c, &req) {
		return
	}
	if err := a.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		errutil.LogErrorContext(c.Request.Context(), a.logger, "password reset request failed", err)
	}
	c.JSON(http.StatusOK, messageResponse{Message: MsgResetRequested})
}

// resetPassword answers a rejected reset token with 400.
func (a *API) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !a.bind(c, &req) {
		return
	}
	err := a.auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if errutil.HasCode(err, auth.CodeInvalidToken) {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid or expired token"})
		return
	}
	if err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: MsgPasswordReset})
}

func requireIdentity(c *gin.Context) (*gate.Identity, error) {
	id, ok := gate.FromGin(c)
	if !ok {
		return nil, gate.ErrAuthRequired()
	}
	return id, nil
}
