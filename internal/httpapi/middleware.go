// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package httpapi

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/pkg/errutil"
)

// requestLog logs every request once it completes and counts it by route.
func (a *API) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		a.metrics.RecordHTTPRequest(c.Request.Method, route, status)
		a.logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", route,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP())
	}
}

// recovery turns handler panics into a logged 500.
func (a *API) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := oops.Code("HTTP_PANIC").With("path", c.Request.URL.Path).Errorf("panic: %v", recovered)
		a.renderError(c, err)
	})
}

// rateLimit counts hits per client IP and route. Limiter failures are
// logged and the request proceeds.
func (a *API) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		res, err := a.limiter.Allow(c.Request.Context(), route+":"+c.ClientIP())
		if err != nil {
			a.logger.WarnContext(c.Request.Context(), "rate limiter unavailable",
				"route", route,
				"error", err,
				"code", errutil.Code(err))
			c.Next()
			return
		}
		if res.Limit > 0 {
			reset := strconv.Itoa(int(math.Ceil(res.Reset.Seconds())))
			c.Header("RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("RateLimit-Remaining", strconv.Itoa(res.Remaining))
			c.Header("RateLimit-Reset", reset)
			if !res.Allowed {
				c.Header("Retry-After", reset)
			}
		}
		if !res.Allowed {
			a.metrics.RecordRateLimited(route)
			a.renderError(c, oops.Code(CodeRateLimited).With("route", route).Errorf("rate limit exceeded"))
			return
		}
		c.Next()
	}
}

// methodNotAllowed answers 405 with the methods the path does accept.
func (a *API) methodNotAllowed(c *gin.Context) {
	var allowed []string
	for pattern, methods := range a.methods {
		if matchPath(pattern, c.Request.URL.Path) {
			allowed = append(allowed, methods...)
		}
	}
	slices.Sort(allowed)
	allowed = slices.Compact(allowed)
	if len(allowed) > 0 {
		c.Header("Allow", strings.Join(allowed, ", "))
	}
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, ErrorResponse{
		Message: "Method " + c.Request.Method + " not allowed",
	})
}

// matchPath matches a gin route pattern against a request path. Parameter
// segments (":id") match any single segment.
func matchPath(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i, p := range ps {
		if strings.HasPrefix(p, ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if p != xs[i] {
			return false
		}
	}
	return true
}

func joinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(rel, "/")
}
