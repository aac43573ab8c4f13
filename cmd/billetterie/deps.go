// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/billetterie/billetterie/internal/config"
	"github.com/billetterie/billetterie/internal/observability"
	"github.com/billetterie/billetterie/internal/ratelimit"
	"github.com/billetterie/billetterie/internal/store"
)

// Database is the pool the serve command runs against. *pgxpool.Pool and
// pgxmock pools satisfy it.
type Database interface {
	store.Pool
	Ping(ctx context.Context) error
	Close()
}

// AutoMigrator applies pending migrations at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer is the metrics and health endpoint.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Handler() http.Handler
	Metrics() *observability.Metrics
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the connection pool.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, cfg config.Database, logger *slog.Logger) (Database, error)

	// MigratorFactory creates the startup migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// ObservabilityServerFactory creates the observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// LimiterFactory builds the credential endpoint rate limiter and a
	// function releasing its resources.
	// Default: a Redis limiter, or ratelimit.Noop when no address is set
	LimiterFactory func(cfg config.RateLimit) (ratelimit.Limiter, func() error, error)

	// Listen opens the HTTP API listener.
	// Default: net.Listen on tcp
	Listen func(addr string) (net.Listener, error)

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.DatabaseFactory == nil {
		out.DatabaseFactory = func(ctx context.Context, cfg config.Database, logger *slog.Logger) (Database, error) {
			pool, err := store.Connect(ctx, cfg.URL, cfg.ConnectTimeout, logger)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (AutoMigrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	if out.LimiterFactory == nil {
		out.LimiterFactory = newLimiter
	}
	if out.Listen == nil {
		out.Listen = func(addr string) (net.Listener, error) {
			return net.Listen("tcp", addr)
		}
	}
	return &out
}

func newLimiter(cfg config.RateLimit) (ratelimit.Limiter, func() error, error) {
	if cfg.RedisAddr == "" {
		return ratelimit.Noop{}, func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	limiter, err := ratelimit.NewRedisLimiter(client, cfg.Limit, cfg.Window)
	if err != nil {
		_ = client.Close() //nolint:errcheck // constructor error takes precedence
		return nil, nil, err
	}
	return limiter, client.Close, nil
}
