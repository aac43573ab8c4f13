// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinPasswordLength is the shortest password accepted at registration and
// on change or reset.
const MinPasswordLength = 6

// Role is the authorization level of a user.
type Role string

// Roles known to the API.
const (
	RoleUser      Role = "USER"
	RoleAdmin     Role = "ADMIN"
	RoleOrganizer Role = "ORGANIZER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleOrganizer:
		return true
	}
	return false
}

// ParseRole converts a stored role name to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.Code("AUTH_ROLE_INVALID").With("role", s).Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is an account. PasswordHash never leaves the service layer; use
// Public for anything sent to a client.
type User struct {
	ID            ulid.ULID
	Email         string
	PasswordHash  string
	Name          *string
	Role          Role
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser is the client-facing view of a User.
type PublicUser struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            *string   `json:"name"`
	Role            Role      `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Public strips the password hash.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID.String(),
		Email:           u.Email,
		Name:            u.Name,
		Role:            u.Role,
		IsEmailVerified: u.EmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// HasRole reports whether the user holds any of roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeEmail trims and lower-cases an email address. Emails are stored
// and compared in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a syntactically valid address.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return errValidation("email", "Invalid email address")
	}
	return nil
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(field, password string) error {
	if len(password) < MinPasswordLength {
		return errValidation(field, "Password must be at least 6 characters")
	}
	return nil
}

// NewUser creates a USER-role account with a fresh id. The email is
// normalised; passwordHash must already be computed.
func NewUser(email, passwordHash string, name *string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_HASH_REQUIRED").Errorf("password hash is required")
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			name = nil
		} else {
			name = &trimmed
		}
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// UserRepository persists users.
type UserRepository interface {
	// Create inserts a user. Returns ErrDuplicate if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID returns ErrNotFound if no user has id.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail looks up a normalised email. Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePassword replaces the stored hash. Returns ErrNotFound if absent.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}

// BlockList reports users barred from signing in.
type BlockList interface {
	IsBlocked(ctx context.Context, userID ulid.ULID) (bool, error)
}

// Transactor runs fn inside a single storage transaction. Repositories
// called with the ctx passed to fn take part in it.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
