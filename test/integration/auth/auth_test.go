// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/internal/httpapi"
)

type apiResponse struct {
	status  int
	body    map[string]any
	raw     []byte
	cookies []*http.Cookie
}

func (r apiResponse) sessionCookie() *http.Cookie {
	for _, c := range r.cookies {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

func call(method, path, token string, payload any) apiResponse {
	GinkgoHelper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(env.ctx, method, env.server.URL+path, body)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())

	out := apiResponse{status: resp.StatusCode, raw: raw, cookies: resp.Cookies()}
	if len(raw) > 0 && raw[0] == '{' {
		Expect(json.Unmarshal(raw, &out.body)).To(Succeed())
	}
	return out
}

func createEvent(title string, date time.Time) string {
	GinkgoHelper()
	e, err := env.events.Create(env.ctx, title, date, "Paris")
	Expect(err).NotTo(HaveOccurred())
	return e.ID.String()
}

func register(email, password string) string {
	GinkgoHelper()
	resp := call(http.MethodPost, "/api/auth/register", "", map[string]any{"email": email, "password": password})
	Expect(resp.status).To(Equal(http.StatusCreated), string(resp.raw))
	return resp.body["token"].(string)
}

var _ = Describe("Session lifecycle", func() {
	It("registers, logs out and logs back in with a fresh token", func() {
		resp := call(http.MethodPost, "/api/auth/register", "", map[string]any{
			"email": "a@b.com", "password": "secret1",
		})
		Expect(resp.status).To(Equal(http.StatusCreated))
		Expect(string(resp.raw)).NotTo(ContainSubstring("password"))

		cookie := resp.sessionCookie()
		Expect(cookie).NotTo(BeNil())
		Expect(cookie.HttpOnly).To(BeTrue())
		Expect(cookie.SameSite).To(Equal(http.SameSiteStrictMode))

		token := resp.body["token"].(string)
		Expect(cookie.Value).To(Equal(token))
		payload, err := env.codec.Verify(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Email).To(Equal("a@b.com"))

		sessions, err := env.ledger.ListActive(env.ctx, payload.UserID)
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(HaveLen(1))
		Expect(sessions[0].ExpiresAt.Sub(sessions[0].CreatedAt)).To(Equal(auth.DefaultSessionTTL))

		me := call(http.MethodGet, "/api/auth/me", token, nil)
		Expect(me.status).To(Equal(http.StatusOK))

		out := call(http.MethodPost, "/api/auth/logout", token, nil)
		Expect(out.status).To(Equal(http.StatusOK))
		Expect(out.body["message"]).To(Equal(httpapi.MsgLoggedOut))
		Expect(out.sessionCookie()).NotTo(BeNil())
		Expect(out.sessionCookie().MaxAge).To(BeNumerically("<", 0))

		_, _, err = env.service.ValidateToken(env.ctx, token)
		Expect(err).To(HaveOccurred())
		Expect(call(http.MethodGet, "/api/auth/me", token, nil).status).To(Equal(http.StatusUnauthorized))

		login := call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "A@B.com", "password": "secret1",
		})
		Expect(login.status).To(Equal(http.StatusOK))
		Expect(login.body["token"]).NotTo(Equal(token))
	})

	It("rejects a duplicate registration", func() {
		register("dup@example.com", "secret1")

		resp := call(http.MethodPost, "/api/auth/register", "", map[string]any{
			"email": "DUP@example.com", "password": "secret1",
		})
		Expect(resp.status).To(Equal(http.StatusBadRequest))
		Expect(resp.body["message"]).To(Equal("User with this email already exists"))
	})

	It("treats a blocked user like a wrong password", func() {
		token := register("blocked@example.com", "secret1")
		payload, err := env.codec.Verify(token)
		Expect(err).NotTo(HaveOccurred())
		_, err = env.pool.Exec(env.ctx,
			`INSERT INTO blocked_users (user_id, reason) VALUES ($1, 'fraud')`, payload.UserID.String())
		Expect(err).NotTo(HaveOccurred())

		blocked := call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "blocked@example.com", "password": "secret1",
		})
		wrong := call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "blocked@example.com", "password": "not-it",
		})
		Expect(blocked.status).To(Equal(http.StatusUnauthorized))
		Expect(blocked.raw).To(Equal(wrong.raw))
	})

	It("keeps a session created before the request was cancelled", func() {
		ctx, cancel := context.WithCancel(env.ctx)
		result, err := env.service.Register(ctx, auth.RegisterInput{
			Email: "cancel@example.com", Password: "secret1",
		}, auth.ClientMeta{})
		cancel()
		Expect(err).NotTo(HaveOccurred())

		_, _, err = env.service.ValidateToken(env.ctx, result.Token)
		Expect(err).NotTo(HaveOccurred())

		userID := result.Session.UserID
		n, err := env.service.RevokeSessions(env.ctx, userID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
	})
})

var _ = Describe("Password change", func() {
	It("keeps sessions when the old password is wrong", func() {
		token := register("change@example.com", "secret1")

		resp := call(http.MethodPost, "/api/auth/change-password", token, map[string]any{
			"oldPassword": "wrong", "newPassword": "newpass1",
		})
		Expect(resp.status).To(Equal(http.StatusBadRequest))
		Expect(resp.body["message"]).To(Equal("Current password is incorrect"))
		Expect(call(http.MethodGet, "/api/auth/me", token, nil).status).To(Equal(http.StatusOK))
	})

	It("revokes every session after a change", func() {
		token := register("change2@example.com", "secret1")

		resp := call(http.MethodPost, "/api/auth/change-password", token, map[string]any{
			"oldPassword": "secret1", "newPassword": "newpass1",
		})
		Expect(resp.status).To(Equal(http.StatusOK))

		_, err := env.codec.Verify(token)
		Expect(err).NotTo(HaveOccurred(), "the token itself is still well formed")
		Expect(call(http.MethodGet, "/api/auth/me", token, nil).status).To(Equal(http.StatusUnauthorized))

		login := call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "change2@example.com", "password": "newpass1",
		})
		Expect(login.status).To(Equal(http.StatusOK))
	})
})

var _ = Describe("Password reset", func() {
	It("answers identically for known and unknown emails", func() {
		register("known@example.com", "secret1")

		known := call(http.MethodPost, "/api/auth/request-reset", "", map[string]any{"email": "known@example.com"})
		unknown := call(http.MethodPost, "/api/auth/request-reset", "", map[string]any{"email": "ghost@example.com"})

		Expect(known.status).To(Equal(http.StatusOK))
		Expect(unknown.status).To(Equal(http.StatusOK))
		Expect(known.raw).To(Equal(unknown.raw))
		Expect(env.notifier.token("known@example.com")).NotTo(BeEmpty())
		Expect(env.notifier.token("ghost@example.com")).To(BeEmpty())
	})

	It("accepts a reset token exactly once", func() {
		session := register("reset@example.com", "secret1")
		Expect(call(http.MethodPost, "/api/auth/request-reset", "", map[string]any{
			"email": "reset@example.com",
		}).status).To(Equal(http.StatusOK))
		resetToken := env.notifier.token("reset@example.com")

		first := call(http.MethodPost, "/api/auth/reset-password", "", map[string]any{
			"token": resetToken, "newPassword": "fresh-pass",
		})
		Expect(first.status).To(Equal(http.StatusOK))
		Expect(call(http.MethodGet, "/api/auth/me", session, nil).status).To(Equal(http.StatusUnauthorized))

		second := call(http.MethodPost, "/api/auth/reset-password", "", map[string]any{
			"token": resetToken, "newPassword": "other-pass",
		})
		Expect(second.status).To(Equal(http.StatusBadRequest))

		login := call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "reset@example.com", "password": "fresh-pass",
		})
		Expect(login.status).To(Equal(http.StatusOK))
	})

	It("does not accept a session token as a reset token", func() {
		session := register("mixup@example.com", "secret1")

		resp := call(http.MethodPost, "/api/auth/reset-password", "", map[string]any{
			"token": session, "newPassword": "fresh-pass",
		})
		Expect(resp.status).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("Tickets", func() {
	It("lists only the caller's tickets unless the caller is an admin", func() {
		alice := register("alice@example.com", "secret1")
		bob := register("bob@example.com", "secret1")
		concert := createEvent("Concert", time.Now().Add(24*time.Hour))
		opera := createEvent("Opera", time.Now().Add(48*time.Hour))

		created := call(http.MethodPost, "/api/tickets", alice, map[string]any{"eventId": concert, "price": 25.5})
		Expect(created.status).To(Equal(http.StatusCreated))
		Expect(created.body["price"]).To(BeNumerically("==", 25.5))
		Expect(call(http.MethodPost, "/api/tickets", bob, map[string]any{"eventId": opera, "price": 40}).status).
			To(Equal(http.StatusCreated))

		var own []map[string]any
		Expect(json.Unmarshal(call(http.MethodGet, "/api/tickets", alice, nil).raw, &own)).To(Succeed())
		Expect(own).To(HaveLen(1))
		Expect(own[0]["eventId"]).To(Equal(concert))

		_, err := env.pool.Exec(env.ctx, `UPDATE users SET role = 'ADMIN' WHERE email = 'bob@example.com'`)
		Expect(err).NotTo(HaveOccurred())
		var all []map[string]any
		Expect(json.Unmarshal(call(http.MethodGet, "/api/tickets", bob, nil).raw, &all)).To(Succeed())
		Expect(all).To(HaveLen(2))
	})

	It("rejects tickets for events that are not catalogued", func() {
		token := register("carol@example.com", "secret1")
		resp := call(http.MethodPost, "/api/tickets", token, map[string]any{"eventId": "concert", "price": 10})
		Expect(resp.status).To(Equal(http.StatusBadRequest))
		Expect(resp.body["errors"]).To(ContainElement(HaveKeyWithValue("field", "eventId")))
	})

	It("requires authentication", func() {
		resp := call(http.MethodGet, "/api/tickets", "", nil)
		Expect(resp.status).To(Equal(http.StatusUnauthorized))
		Expect(resp.body["message"]).To(Equal("Authentication required"))
	})

	It("restricts session administration to admins", func() {
		token := register("plain@example.com", "secret1")
		payload, err := env.codec.Verify(token)
		Expect(err).NotTo(HaveOccurred())

		resp := call(http.MethodGet, "/api/admin/users/"+payload.UserID.String()+"/sessions", token, nil)
		Expect(resp.status).To(Equal(http.StatusForbidden))
	})
})

var _ = Describe("Event catalogue", func() {
	It("lists the ten soonest upcoming events without a token", func() {
		base := time.Now().UTC().Truncate(time.Second).Add(time.Hour)
		createEvent("Yesterday", base.Add(-25*time.Hour))
		for i := 12; i > 0; i-- {
			createEvent("Show", base.Add(time.Duration(i)*24*time.Hour))
		}

		resp := call(http.MethodGet, "/api/public/events", "", nil)
		Expect(resp.status).To(Equal(http.StatusOK))
		var list []map[string]any
		Expect(json.Unmarshal(resp.raw, &list)).To(Succeed())
		Expect(list).To(HaveLen(10))
		first, err := time.Parse(time.RFC3339, list[0]["date"].(string))
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(BeTemporally("==", base.Add(24*time.Hour)))
	})

	It("lets only admins add events", func() {
		token := register("dan@example.com", "secret1")
		body := map[string]any{"title": "Festival", "date": time.Now().Add(time.Hour).Format(time.RFC3339), "location": "Arles"}
		Expect(call(http.MethodPost, "/api/admin/events", token, body).status).To(Equal(http.StatusForbidden))

		_, err := env.pool.Exec(env.ctx, `UPDATE users SET role = 'ADMIN' WHERE email = 'dan@example.com'`)
		Expect(err).NotTo(HaveOccurred())
		created := call(http.MethodPost, "/api/admin/events", token, body)
		Expect(created.status).To(Equal(http.StatusCreated))

		got := call(http.MethodGet, "/api/public/events/"+created.body["id"].(string), "", nil)
		Expect(got.status).To(Equal(http.StatusOK))
		Expect(got.body["location"]).To(Equal("Arles"))
	})
})

var _ = Describe("Rate limiting", func() {
	It("blocks the eleventh login attempt within the window", func() {
		for range 10 {
			resp := call(http.MethodPost, "/api/auth/login", "", map[string]any{
				"email": "nobody@example.com", "password": "secret1",
			})
			Expect(resp.status).To(Equal(http.StatusUnauthorized))
		}

		resp := call(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "nobody@example.com", "password": "secret1",
		})
		Expect(resp.status).To(Equal(http.StatusTooManyRequests))
		Expect(resp.body["message"]).To(Equal("Too many requests, please try again later."))
	})
})
