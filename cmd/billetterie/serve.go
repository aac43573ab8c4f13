// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/billetterie/billetterie/internal/auth"
	authpg "github.com/billetterie/billetterie/internal/auth/postgres"
	"github.com/billetterie/billetterie/internal/config"
	"github.com/billetterie/billetterie/internal/event"
	eventpg "github.com/billetterie/billetterie/internal/event/postgres"
	"github.com/billetterie/billetterie/internal/httpapi"
	"github.com/billetterie/billetterie/internal/logging"
	"github.com/billetterie/billetterie/internal/ratelimit"
	"github.com/billetterie/billetterie/internal/store"
	"github.com/billetterie/billetterie/internal/ticket"
	ticketpg "github.com/billetterie/billetterie/internal/ticket/postgres"
	"github.com/billetterie/billetterie/pkg/errutil"
)

// serveFlagKeys maps serve flags to config keys.
var serveFlagKeys = map[string]string{
	"addr":         "server.addr",
	"environment":  "server.environment",
	"metrics-addr": "observability.metrics_addr",
	"redis-addr":   "ratelimit.redis_addr",
	"auto-migrate": "database.auto_migrate",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API together with the metrics and health endpoint
and the expired-session sweeper. The process stops gracefully on
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().String("environment", "", "deployment environment (development, test, production)")
	cmd.Flags().String("metrics-addr", "", "metrics and health listen address (empty disables)")
	cmd.Flags().String("redis-addr", "", "Redis address for rate limiting (empty disables)")
	cmd.Flags().Bool("auto-migrate", true, "apply pending migrations at startup")
	cmd.Flags().String("log-format", "", "log format (json or text)")
	cmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")

	return cmd
}

// app is the wired request path.
type app struct {
	handler http.Handler
	ledger  *auth.SessionLedger
}

// buildApp wires repositories, services and the HTTP API over db.
func buildApp(cfg *config.Config, db Database, obs ObservabilityServer, limiter ratelimit.Limiter, logger *slog.Logger) (*app, error) {
	metrics := obs.Metrics()

	users := authpg.NewUserRepository(db)
	resets := authpg.NewPasswordResetRepository(db)

	hasher, err := auth.NewPasswordHasher(cfg.Auth.PasswordHasher, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}
	ledger, err := auth.NewSessionLedger(authpg.NewSessionRepository(db), cfg.Auth.SessionTTL,
		auth.WithLedgerLogger(logger),
		auth.WithLedgerMetrics(metrics),
		auth.WithExpiredResets(resets),
	)
	if err != nil {
		return nil, err
	}

	authService, err := auth.NewService(auth.ServiceDeps{
		Users:      users,
		Blocklist:  authpg.NewBlockListRepository(db),
		Sessions:   ledger,
		Resets:     resets,
		Hasher:     hasher,
		Codec:      codec,
		Transactor: store.NewTransactor(db),
		Notifier:   auth.NewLogNotifier(logger, cfg.Auth.RevealResetLinks),
		Logger:     logger,
		Metrics:    metrics,
		ResetTTL:   cfg.Auth.ResetTTL,
	})
	if err != nil {
		return nil, err
	}

	events, err := event.NewService(eventpg.NewEventRepository(db), logger)
	if err != nil {
		return nil, err
	}
	tickets, err := ticket.NewService(ticketpg.NewTicketRepository(db), logger,
		ticket.WithEventChecker(events))
	if err != nil {
		return nil, err
	}

	handler, err := httpapi.NewHandler(httpapi.Options{
		Auth:          authService,
		Tickets:       tickets,
		Events:        events,
		Limiter:       limiter,
		Metrics:       metrics,
		Logger:        logger,
		Health:        obs.Handler(),
		SecureCookies: cfg.Server.Production(),
		SessionTTL:    cfg.Auth.SessionTTL,
	})
	if err != nil {
		return nil, err
	}
	return &app{handler: handler, ledger: ledger}, nil
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd, serveFlagKeys)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(serviceName, version, logging.Options{
		Format: cfg.Log.Format,
		Level:  cfg.Log.Level,
	}, deps.LogWriter)
	slog.SetDefault(logger)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := deps.DatabaseFactory(ctx, cfg.Database, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	obs := deps.ObservabilityServerFactory(cfg.Observability.MetricsAddr, db.Ping, logger)

	limiter, closeLimiter, err := deps.LimiterFactory(cfg.RateLimit)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLimiter(); err != nil {
			logger.Debug("error closing rate limiter", "error", err)
		}
	}()

	a, err := buildApp(cfg, db, obs, limiter, logger)
	if err != nil {
		return err
	}

	listener, err := deps.Listen(cfg.Server.Addr)
	if err != nil {
		return oops.Code("SERVER_LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Observability.MetricsAddr != "" {
		obsErrCh, err := obs.Start()
		if err != nil {
			_ = listener.Close() //nolint:errcheck // start error takes precedence
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		logger.Info("observability server started", "addr", obs.Addr())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.ledger.RunSweeper(ctx, cfg.Auth.SweepInterval)
	}()

	httpServer := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	cmd.Println("Billetterie listening on", listener.Addr().String())
	logger.Info("http server ready",
		"addr", listener.Addr().String(),
		"environment", cfg.Server.Environment,
	)

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = oops.Code("SERVER_FAILED").Wrap(err)
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if cfg.Observability.MetricsAddr != "" {
		if err := obs.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	wg.Wait()

	logger.Info("shutdown complete")
	return serveErr
}

// autoMigrate applies pending migrations before the API accepts traffic.
func autoMigrate(databaseURL string, factory func(string) (AutoMigrator, error), logger *slog.Logger) error {
	m, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Debug("error closing migrator", "error", err)
		}
	}()

	start := time.Now()
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	logger.Info("database migrations applied", "duration", time.Since(start))
	return nil
}

// monitorServerErrors cancels ctx when a background server fails.
// It returns once errCh yields or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok || err == nil {
			return
		}
		errutil.LogErrorContext(ctx, slog.Default(), "server error, triggering shutdown",
			oops.With("server", serverName).Wrap(err))
		cancel()
	case <-ctx.Done():
	}
}
