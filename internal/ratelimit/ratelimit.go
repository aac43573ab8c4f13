// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Package ratelimit implements fixed-window request limits backed by Redis.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// Defaults match a budget of 10 attempts per 15 minutes.
const (
	DefaultLimit  = 10
	DefaultWindow = 15 * time.Minute
	keyPrefix     = "rl:"
)

// Result describes the state of a key's window after a hit.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is the time left until the window closes.
	Reset time.Duration
}

// Limiter counts hits against a key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter is a fixed-window limiter. The first hit of a window sets
// the key's expiry; later hits only increment it.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a RedisLimiter. Zero limit or window select the
// defaults.
func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) (*RedisLimiter, error) {
	if client == nil {
		return nil, oops.Code("RATELIMIT_INVALID_CONFIG").Errorf("redis client is required")
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if window == 0 {
		window = DefaultWindow
	}
	if limit < 0 || window < 0 {
		return nil, oops.Code("RATELIMIT_INVALID_CONFIG").
			With("limit", limit).
			With("window", window.String()).
			Errorf("limit and window must be positive")
	}
	return &RedisLimiter{client: client, limit: limit, window: window}, nil
}

// Allow records a hit on key and reports whether it is within the limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	key = keyPrefix + key
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "incr").Wrap(err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return Result{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "expire").Wrap(err)
		}
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return Result{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "pttl").Wrap(err)
	}
	if ttl < 0 {
		// Key lost its expiry; restart the window so it cannot live forever.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return Result{}, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "expire").Wrap(err)
		}
		ttl = l.window
	}

	return Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: max(l.limit-int(count), 0),
		Reset:     ttl,
	}, nil
}

// Noop never limits. It is used when no Redis address is configured.
type Noop struct{}

var _ Limiter = Noop{}

// Allow always allows.
func (Noop) Allow(context.Context, string) (Result, error) {
	return Result{Allowed: true}, nil
}
