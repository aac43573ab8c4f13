// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/billetterie/billetterie/pkg/errutil"
)

// ServiceDeps are the collaborators of a Service. Logger, Metrics, ResetTTL
// and Clock are optional; everything else is required.
type ServiceDeps struct {
	Users      UserRepository
	Blocklist  BlockList
	Sessions   *SessionLedger
	Resets     PasswordResetRepository
	Hasher     PasswordHasher
	Codec      *TokenCodec
	Transactor Transactor
	Notifier   ResetNotifier
	Logger     *slog.Logger
	Metrics    Metrics
	ResetTTL   time.Duration
	Clock      func() time.Time
}

// Service provides account and session operations.
type Service struct {
	users     UserRepository
	blocklist BlockList
	sessions  *SessionLedger
	resets    PasswordResetRepository
	hasher    PasswordHasher
	codec     *TokenCodec
	tx        Transactor
	notifier  ResetNotifier
	logger    *slog.Logger
	metrics   Metrics
	resetTTL  time.Duration
	dummyHash string
	now       func() time.Time
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     *string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User    PublicUser `json:"user"`
	Token   string     `json:"token"`
	Session *Session   `json:"-"`
}

// NewService validates deps and creates a Service.
func NewService(deps ServiceDeps) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	case deps.Blocklist == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("block list is required")
	case deps.Sessions == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session ledger is required")
	case deps.Resets == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password reset repository is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	case deps.Codec == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token codec is required")
	case deps.Transactor == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("transactor is required")
	case deps.Notifier == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("reset notifier is required")
	}

	s := &Service{
		users:     deps.Users,
		blocklist: deps.Blocklist,
		sessions:  deps.Sessions,
		resets:    deps.Resets,
		hasher:    deps.Hasher,
		codec:     deps.Codec,
		tx:        deps.Transactor,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		resetTTL:  deps.ResetTTL,
		now:       time.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.resetTTL == 0 {
		s.resetTTL = DefaultResetTTL
	}
	if deps.Clock != nil {
		s.now = deps.Clock
	}

	// Logins for unknown emails are verified against dummyHash.
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Wrap(err)
	}
	dummy, err := s.hasher.Hash(hex.EncodeToString(seed))
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("operation", "compute dummy hash").Wrap(err)
	}
	s.dummyHash = dummy
	return s, nil
}

func (s *Service) record(op string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		switch errutil.Code(err) {
		case CodeValidation, CodeUserExists, CodeInvalidCredentials, CodeInvalidToken,
			CodeWrongPassword, CodeUserNotFound:
			outcome = OutcomeFailure
		default:
			outcome = OutcomeError
		}
	}
	s.metrics.RecordAuthOperation(op, outcome)
}

// Register creates a USER account and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput, meta ClientMeta) (result *AuthResult, err error) {
	defer func() { s.record("register", err) }()

	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword("password", in.Password); err != nil {
		return nil, err
	}

	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, oops.Code(CodeUserExists).Errorf("user with this email already exists")
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "get user by email").Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errutil.HasCode(err, CodeValidation) {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(email, hash, in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, oops.Code(CodeUserExists).Errorf("user with this email already exists")
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "create user").Wrap(err)
	}

	result, err = s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return result, nil
}

// Login verifies credentials and opens a session. An unknown email, a wrong
// password and a blocked account all fail with the same
// AUTH_INVALID_CREDENTIALS error.
func (s *Service) Login(ctx context.Context, email, password string, meta ClientMeta) (result *AuthResult, err error) {
	defer func() { s.record("login", err) }()

	user, lookupErr := s.users.GetByEmail(ctx, NormalizeEmail(email))
	exists := lookupErr == nil
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get user by email").Wrap(lookupErr)
	}

	target := s.dummyHash
	if exists {
		target = user.PasswordHash
	}
	valid, verifyErr := s.hasher.Verify(password, target)
	if verifyErr != nil {
		if exists {
			errutil.LogErrorContext(ctx, s.logger, "stored password hash unreadable", verifyErr)
		}
		return nil, errInvalidCredentials()
	}
	if !exists || !valid {
		return nil, errInvalidCredentials()
	}

	blocked, err := s.blocklist.IsBlocked(ctx, user.ID)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "check block list").Wrap(err)
	}
	if blocked {
		s.logger.WarnContext(ctx, "blocked user login attempt", "user_id", user.ID.String())
		return nil, errInvalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	result, err = s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	return result, nil
}

// upgradeHash re-hashes password with the current hasher. Failures are
// logged and do not fail the login.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	user.PasswordHash = hash
}

func (s *Service) openSession(ctx context.Context, user *User, meta ClientMeta) (*AuthResult, error) {
	token, err := s.codec.Issue(user.ID, user.Email, PurposeSession, s.sessions.TTL())
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_FAILED").With("operation", "issue token").Wrap(err)
	}
	session, err := s.sessions.Create(ctx, user.ID, token, meta)
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_FAILED").With("operation", "create session").Wrap(err)
	}
	return &AuthResult{User: user.Public(), Token: token, Session: session}, nil
}

// Logout revokes the session for token. Unknown or empty tokens are not an
// error.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	defer func() { s.record("logout", err) }()

	if err := s.sessions.Revoke(ctx, token); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").Wrap(err)
	}
	return nil
}

// ValidateToken resolves a session token to its user and session. The
// token must verify, carry the session purpose and match an active session
// of the same user whose account still exists.
func (s *Service) ValidateToken(ctx context.Context, token string) (user *User, session *Session, err error) {
	defer func() { s.record("validate", err) }()

	payload, err := s.codec.VerifyPurpose(token, PurposeSession)
	if err != nil {
		return nil, nil, err
	}

	session, err = s.sessions.FindActiveByTokenForUser(ctx, token, payload.UserID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogErrorContext(ctx, s.logger, "session lookup failed", err)
		}
		return nil, nil, errInvalidToken(nil)
	}

	user, err = s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogErrorContext(ctx, s.logger, "user lookup failed", err)
		}
		return nil, nil, errInvalidToken(nil)
	}
	return user, session, nil
}

// CurrentUser returns the public view of the token's user.
func (s *Service) CurrentUser(ctx context.Context, token string) (*PublicUser, error) {
	user, _, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}

// ChangePassword replaces the password of userID after checking
// oldPassword. Every session and outstanding reset of the user is revoked
// in the same transaction.
func (s *Service) ChangePassword(ctx context.Context, userID ulid.ULID, oldPassword, newPassword string) (err error) {
	defer func() { s.record("change_password", err) }()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeUserNotFound).With("user_id", userID.String()).Errorf("user not found")
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "get user").Wrap(err)
	}

	valid, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "verify password").Wrap(err)
	}
	if !valid {
		return oops.Code(CodeWrongPassword).Errorf("current password is incorrect")
	}

	if err := ValidatePassword("newPassword", newPassword); err != nil {
		return err
	}
	if err := s.replacePassword(ctx, user.ID, newPassword, nil); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").Wrap(err)
	}
	s.logger.InfoContext(ctx, "password changed", "user_id", user.ID.String())
	return nil
}

// replacePassword hashes password and, in one transaction, runs claim,
// stores the hash and revokes every session and reset of userID. A nil
// claim is skipped.
func (s *Service) replacePassword(ctx context.Context, userID ulid.ULID, password string, claim func(ctx context.Context) error) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.With("operation", "hash password").Wrap(err)
	}
	return s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if claim != nil {
			if err := claim(ctx); err != nil {
				return err
			}
		}
		if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
			return oops.With("operation", "update password").Wrap(err)
		}
		if _, err := s.sessions.RevokeAll(ctx, userID); err != nil {
			return oops.With("operation", "revoke sessions").Wrap(err)
		}
		if _, err := s.resets.DeleteByUser(ctx, userID); err != nil {
			return oops.With("operation", "delete resets").Wrap(err)
		}
		return nil
	})
}

// RequestPasswordReset issues a reset token for email and hands it to the
// notifier. It returns nil whether or not the email belongs to an account,
// and storage failures are only logged.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	err := s.requestReset(ctx, NormalizeEmail(email))
	s.record("request_reset", err)
	if err != nil && !errors.Is(err, ErrNotFound) {
		errutil.LogErrorContext(ctx, s.logger, "password reset request failed", err)
	}
	return nil
}

func (s *Service) requestReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "password reset for unknown email")
			return nil
		}
		return oops.Code("AUTH_RESET_REQUEST_FAILED").With("operation", "get user by email").Wrap(err)
	}

	token, err := s.codec.Issue(user.ID, user.Email, PurposeReset, s.resetTTL)
	if err != nil {
		return oops.Code("AUTH_RESET_REQUEST_FAILED").With("operation", "issue token").Wrap(err)
	}

	now := s.now().UTC()
	reset, err := NewPasswordReset(user.ID, HashToken(token), now, now.Add(s.resetTTL))
	if err != nil {
		return oops.Code("AUTH_RESET_REQUEST_FAILED").Wrap(err)
	}

	// A new request supersedes earlier outstanding tokens.
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.resets.DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		return s.resets.Create(ctx, reset)
	})
	if err != nil {
		return oops.Code("AUTH_RESET_REQUEST_FAILED").With("operation", "store reset").Wrap(err)
	}

	if err := s.notifier.SendReset(ctx, user, token, reset.ExpiresAt); err != nil {
		return oops.Code("AUTH_RESET_NOTIFY_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}
	return nil
}

// ResetPassword sets a new password using a reset token. The token must
// verify with the reset purpose and match an unexpired, unused reset
// record of the same user. The record is consumed in the transaction that
// writes the password, so a token succeeds at most once even under
// concurrent use. All failures yield AUTH_INVALID_TOKEN.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.record("reset_password", err) }()

	if err := ValidatePassword("newPassword", newPassword); err != nil {
		return err
	}

	payload, err := s.codec.VerifyPurpose(token, PurposeReset)
	if err != nil {
		return err
	}

	tokenHash := HashToken(token)
	reset, err := s.resets.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogErrorContext(ctx, s.logger, "reset lookup failed", err)
		}
		return errInvalidToken(nil)
	}
	if reset.UserID != payload.UserID || !reset.ActiveAt(s.now()) {
		return errInvalidToken(nil)
	}

	if _, err := s.users.GetByID(ctx, payload.UserID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogErrorContext(ctx, s.logger, "user lookup failed", err)
		}
		return errInvalidToken(nil)
	}

	consume := func(ctx context.Context) error {
		n, err := s.resets.DeleteByTokenHash(ctx, tokenHash)
		if err != nil {
			return oops.With("operation", "consume reset").Wrap(err)
		}
		if n == 0 {
			return errInvalidToken(nil)
		}
		return nil
	}
	if err := s.replacePassword(ctx, payload.UserID, newPassword, consume); err != nil {
		if errutil.HasCode(err, CodeInvalidToken) {
			return err
		}
		return oops.Code("AUTH_RESET_FAILED").Wrap(err)
	}
	s.logger.InfoContext(ctx, "password reset", "user_id", payload.UserID.String())
	return nil
}

// ListSessions returns the active sessions of userID.
func (s *Service) ListSessions(ctx context.Context, userID ulid.ULID) ([]*Session, error) {
	return s.sessions.ListActive(ctx, userID)
}

// RevokeSessions signs userID out everywhere and returns how many sessions
// were revoked.
func (s *Service) RevokeSessions(ctx context.Context, userID ulid.ULID) (int64, error) {
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "sessions revoked", "user_id", userID.String(), "count", n)
	return n, nil
}
