// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

//go:build integration

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/billetterie/billetterie/internal/auth"
	authpg "github.com/billetterie/billetterie/internal/auth/postgres"
	"github.com/billetterie/billetterie/internal/event"
	eventpg "github.com/billetterie/billetterie/internal/event/postgres"
	"github.com/billetterie/billetterie/internal/httpapi"
	"github.com/billetterie/billetterie/internal/ratelimit"
	"github.com/billetterie/billetterie/internal/store"
	"github.com/billetterie/billetterie/internal/ticket"
	ticketpg "github.com/billetterie/billetterie/internal/ticket/postgres"
)

const testSecret = "integration-secret"

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Integration Suite")
}

// capturingNotifier records the last reset token per email.
type capturingNotifier struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (n *capturingNotifier) SendReset(_ context.Context, user *auth.User, token string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens[user.Email] = token
	return nil
}

func (n *capturingNotifier) token(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[email]
}

// testEnv holds all resources needed for auth integration tests.
type testEnv struct {
	ctx       context.Context
	pool      *pgxpool.Pool
	container testcontainers.Container
	redis     *miniredis.Miniredis
	service   *auth.Service
	codec     *auth.TokenCodec
	ledger    *auth.SessionLedger
	events    *event.Service
	notifier  *capturingNotifier
	server    *httptest.Server
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupAuthTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

var _ = BeforeEach(func() {
	_, err := env.pool.Exec(env.ctx,
		`TRUNCATE users, sessions, blocked_users, password_resets, tickets, events CASCADE`)
	Expect(err).NotTo(HaveOccurred())
	env.redis.FlushAll()
})

func setupAuthTestEnv() (*testEnv, error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("billetterie_test"),
		postgres.WithUsername("billetterie"),
		postgres.WithPassword("billetterie"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}
	_ = migrator.Close()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	e := &testEnv{
		ctx:       ctx,
		pool:      pool,
		container: container,
		notifier:  &capturingNotifier{tokens: make(map[string]string)},
	}
	if err := e.wire(); err != nil {
		e.cleanup()
		return nil, err
	}
	return e, nil
}

// wire builds the same object graph as the serve command.
func (e *testEnv) wire() error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr, err := miniredis.Run()
	if err != nil {
		return err
	}
	e.redis = mr
	limiter, err := ratelimit.NewRedisLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0, 0)
	if err != nil {
		return err
	}

	hasher, err := auth.NewBcryptHasher(auth.MinBcryptCost)
	if err != nil {
		return err
	}
	e.codec, err = auth.NewTokenCodec(testSecret)
	if err != nil {
		return err
	}
	resets := authpg.NewPasswordResetRepository(e.pool)
	e.ledger, err = auth.NewSessionLedger(authpg.NewSessionRepository(e.pool), auth.DefaultSessionTTL,
		auth.WithLedgerLogger(logger), auth.WithExpiredResets(resets))
	if err != nil {
		return err
	}

	e.service, err = auth.NewService(auth.ServiceDeps{
		Users:      authpg.NewUserRepository(e.pool),
		Blocklist:  authpg.NewBlockListRepository(e.pool),
		Sessions:   e.ledger,
		Resets:     resets,
		Hasher:     hasher,
		Codec:      e.codec,
		Transactor: store.NewTransactor(e.pool),
		Notifier:   e.notifier,
		Logger:     logger,
		ResetTTL:   time.Hour,
	})
	if err != nil {
		return err
	}

	e.events, err = event.NewService(eventpg.NewEventRepository(e.pool), logger)
	if err != nil {
		return err
	}
	tickets, err := ticket.NewService(ticketpg.NewTicketRepository(e.pool), logger,
		ticket.WithEventChecker(e.events))
	if err != nil {
		return err
	}

	handler, err := httpapi.NewHandler(httpapi.Options{
		Auth:    e.service,
		Tickets: tickets,
		Events:  e.events,
		Limiter: limiter,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	e.server = httptest.NewServer(handler)
	return nil
}

func (e *testEnv) cleanup() {
	if e.server != nil {
		e.server.Close()
	}
	if e.redis != nil {
		e.redis.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(e.ctx)
	}
}
