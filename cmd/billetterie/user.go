// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package main

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/billetterie/billetterie/internal/auth"
	authpg "github.com/billetterie/billetterie/internal/auth/postgres"
	"github.com/billetterie/billetterie/internal/config"
	"github.com/billetterie/billetterie/internal/store"
)

// UserDeps contains injectable dependencies for the user commands.
type UserDeps struct {
	// DatabaseFactory opens the connection pool.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, cfg config.Database) (Database, error)
}

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	return newUserCmdWithDeps(&UserDeps{})
}

func newUserCmdWithDeps(deps *UserDeps) *cobra.Command {
	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = func(ctx context.Context, cfg config.Database) (Database, error) {
			pool, err := store.Connect(ctx, cfg.URL, cfg.ConnectTimeout, nil)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer user accounts",
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "set-role EMAIL ROLE",
		Short: "Change a user's role (USER, ADMIN, ORGANIZER)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := auth.ParseRole(args[1])
			if err != nil {
				return err
			}
			return withDatabase(cmd, deps, func(ctx context.Context, db Database) error {
				if err := authpg.NewUserRepository(db).SetRole(ctx, args[0], role); err != nil {
					return userError(err, args[0])
				}
				cmd.Printf("%s is now %s\n", args[0], role)
				return nil
			})
		},
	})

	block := &cobra.Command{
		Use:   "block EMAIL",
		Short: "Bar a user from signing in and revoke their sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason") //nolint:errcheck // flag is registered below
			return withDatabase(cmd, deps, func(ctx context.Context, db Database) error {
				user, err := authpg.NewUserRepository(db).GetByEmail(ctx, args[0])
				if err != nil {
					return userError(err, args[0])
				}
				var revoked int64
				err = store.NewTransactor(db).InTransaction(ctx, func(ctx context.Context) error {
					if err := authpg.NewBlockListRepository(db).Block(ctx, user.ID, reason); err != nil {
						return err
					}
					n, err := authpg.NewSessionRepository(db).DeleteByUser(ctx, user.ID)
					revoked = n
					return err
				})
				if err != nil {
					return err
				}
				cmd.Printf("%s blocked, %d session(s) revoked\n", user.Email, revoked)
				return nil
			})
		},
	}
	block.Flags().String("reason", "", "reason recorded with the block")
	cmd.AddCommand(block)

	cmd.AddCommand(&cobra.Command{
		Use:   "unblock EMAIL",
		Short: "Allow a blocked user to sign in again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, deps, func(ctx context.Context, db Database) error {
				user, err := authpg.NewUserRepository(db).GetByEmail(ctx, args[0])
				if err != nil {
					return userError(err, args[0])
				}
				if err := authpg.NewBlockListRepository(db).Unblock(ctx, user.ID); err != nil {
					return err
				}
				cmd.Printf("%s unblocked\n", user.Email)
				return nil
			})
		},
	})

	return cmd
}

// withDatabase loads the database settings, connects and runs fn.
func withDatabase(cmd *cobra.Command, deps *UserDeps, fn func(context.Context, Database) error) error {
	cfg, err := loadConfig(cmd, migrateFlagKeys)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := deps.DatabaseFactory(ctx, cfg.Database)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	return fn(ctx, db)
}

func userError(err error, email string) error {
	if errors.Is(err, auth.ErrNotFound) {
		return oops.Code(auth.CodeUserNotFound).With("email", email).Errorf("no user with email %q", email)
	}
	return err
}
