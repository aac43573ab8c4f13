// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/internal/auth"
	"github.com/billetterie/billetterie/internal/store"
)

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool store.Pool
}

var _ auth.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool store.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, name, role, email_verified, created_at, updated_at`

// Create inserts a user. A taken email yields auth.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.Name,
		string(user.Role),
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.With("email", user.Email).Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	return r.get(row, "id", id.String())
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return r.get(row, "email", email)
}

func (r *UserRepository) get(row pgx.Row, key, value string) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With(key, value).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("operation", "get user by "+key).Wrap(err)
	}
	return user, nil
}

// UpdatePassword replaces the password hash of id.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	tag, err := store.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id.String(), passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update password").
			With("user_id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetRole changes the role of the user with email.
func (r *UserRepository) SetRole(ctx context.Context, email string, role auth.Role) error {
	if !role.Valid() {
		return oops.Code("AUTH_ROLE_INVALID").With("role", string(role)).Errorf("unknown role %q", role)
	}
	tag, err := store.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE lower(email) = lower($1)`,
		email, string(role))
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "set role").
			With("email", email).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("email", email).Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanUser(row scanner) (*auth.User, error) {
	var (
		idStr, role string
		user        auth.User
		createdAt   time.Time
		updatedAt   time.Time
	)
	err := row.Scan(&idStr, &user.Email, &user.PasswordHash, &user.Name, &role,
		&user.EmailVerified, &createdAt, &updatedAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	if user.ID, err = parseULID("id", idStr); err != nil {
		return nil, err
	}
	if user.Role, err = auth.ParseRole(role); err != nil {
		return nil, err
	}
	user.CreatedAt, user.UpdatedAt = createdAt.UTC(), updatedAt.UTC()
	return &user, nil
}
