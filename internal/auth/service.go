// Package auth is the authentication core: credential verification, origin
// rate limiting, account lockout and session revocation, composed into the
// login / password-change / admin-reset flows. All mutable state lives in the
// injected stores (the shared database), never in process memory, so any
// number of stateless workers can run against the same state.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mfreitas/stockholder-portal/internal/model"
	"github.com/mfreitas/stockholder-portal/internal/repository"
	"github.com/mfreitas/stockholder-portal/internal/utils"
)

// UserStore is the credential store accessor. GetByEmail includes the
// password hash; GetByID does not. Absence is reported as sql.ErrNoRows.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
}

// AttemptStore tracks login attempts per network origin.
type AttemptStore interface {
	Record(ctx context.Context, origin string, at time.Time) error
	CountSince(ctx context.Context, origin string, since time.Time) (int, error)
}

// FailureStore tracks failed authentications per account identifier.
type FailureStore interface {
	RecordFailure(ctx context.Context, email, origin string, at time.Time) error
	CountSince(ctx context.Context, email string, since time.Time) (int, error)
	Clear(ctx context.Context, email string) error
}

// RevocationStore is the session revocation ledger: one entry per principal,
// last write wins.
type RevocationStore interface {
	Revoke(ctx context.Context, userID uint64, at time.Time, reason string) error
	RevokedAt(ctx context.Context, userID uint64) (time.Time, bool, error)
}

// Lockout policy.
const (
	MaxFailedAttempts = 5
	LockoutMinutes    = 30

	// DiscloseRemainingAt gates the "N attempts remaining" hint on invalid
	// credential responses. Disclosing only at the tail end nudges the
	// legitimate user without giving an enumerating client a counter for
	// free. Deliberate policy exception; keep the threshold as is.
	DiscloseRemainingAt = 2
)

// Outcome classifies a login attempt.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeInvalidCredential
	OutcomeAccountLocked
)

// LoginResult is the structured outcome of a login attempt. A store failure
// is returned as an error instead and must abort the request; it is never
// folded into a permissive outcome.
type LoginResult struct {
	Outcome        Outcome
	User           model.User // populated only on OutcomeOK
	AttemptsLeft   int        // remaining failures before lockout
	LockoutMinutes int        // lockout window length, for user messaging
	JustLocked     bool       // this failure crossed the lockout threshold
}

// Service orchestrates the stores. The clock is injected so the sliding
// windows can be exercised under a simulated clock in tests.
type Service struct {
	users       UserStore
	attempts    AttemptStore
	failures    FailureStore
	revocations RevocationStore
	log         *zap.SugaredLogger
	now         func() time.Time
	bcryptCost  int
}

func NewService(users UserStore, attempts AttemptStore, failures FailureStore, revocations RevocationStore, log *zap.SugaredLogger, bcryptCost int) *Service {
	return &Service{
		users:       users,
		attempts:    attempts,
		failures:    failures,
		revocations: revocations,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
		bcryptCost:  bcryptCost,
	}
}

// WithClock replaces the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CheckRate reports whether an origin has exhausted its attempt budget for
// the sliding window ending now. The decision counts attempts recorded
// BEFORE the current one: callers check first and record afterwards,
// unconditionally, so hits against a limited origin keep the window hot.
func (s *Service) CheckRate(ctx context.Context, origin string, maxAttempts int, window time.Duration) (bool, int, error) {
	count, err := s.attempts.CountSince(ctx, origin, s.now().Add(-window))
	if err != nil {
		return false, 0, err
	}
	return count >= maxAttempts, count, nil
}

// RecordAttempt appends one attempt for an origin, limited or not.
func (s *Service) RecordAttempt(ctx context.Context, origin string) error {
	return s.attempts.Record(ctx, origin, s.now())
}

// LockoutStatus derives the lockout state for an identifier from the
// trailing-window failure count. There is no stored flag: once failures age
// out of the window the account unlocks by itself.
func (s *Service) LockoutStatus(ctx context.Context, email string) (locked bool, attemptsLeft int, err error) {
	count, err := s.failures.CountSince(ctx, email, s.now().Add(-LockoutMinutes*time.Minute))
	if err != nil {
		return false, 0, err
	}
	attemptsLeft = MaxFailedAttempts - count
	if attemptsLeft < 0 {
		attemptsLeft = 0
	}
	return count >= MaxFailedAttempts, attemptsLeft, nil
}

// Login runs the credential flow for an already rate-checked request:
// lockout check by identifier, then credential lookup and verification. The
// failure path is the same whether the account exists or not, so responses
// cannot be used to enumerate identifiers. On success the failure history is
// cleared.
func (s *Service) Login(ctx context.Context, email, password, origin string) (LoginResult, error) {
	email = utils.NormalizeEmail(email)

	locked, _, err := s.LockoutStatus(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if locked {
		s.log.Warnw("account lockout active",
			"email_hash", utils.HashForLogging(email), "origin", origin)
		return LoginResult{Outcome: OutcomeAccountLocked, LockoutMinutes: LockoutMinutes}, nil
	}

	u, err := s.users.GetByEmail(ctx, email)
	missing := errors.Is(err, sql.ErrNoRows)
	if err != nil && !missing {
		return LoginResult{}, err
	}

	if missing || !utils.VerifyPassword(u.PasswordHash, password) {
		if err := s.failures.RecordFailure(ctx, email, origin, s.now()); err != nil {
			return LoginResult{}, err
		}
		nowLocked, attemptsLeft, err := s.LockoutStatus(ctx, email)
		if err != nil {
			return LoginResult{}, err
		}
		s.log.Infow("login failed",
			"email_hash", utils.HashForLogging(email), "origin", origin,
			"attempts_left", attemptsLeft, "locked", nowLocked)
		return LoginResult{
			Outcome:        OutcomeInvalidCredential,
			AttemptsLeft:   attemptsLeft,
			LockoutMinutes: LockoutMinutes,
			JustLocked:     nowLocked,
		}, nil
	}

	if err := s.failures.Clear(ctx, email); err != nil {
		return LoginResult{}, err
	}
	s.log.Infow("login ok", "user_id", u.ID, "email_hash", utils.HashForLogging(email))
	u.PasswordHash = ""
	return LoginResult{Outcome: OutcomeOK, User: u, AttemptsLeft: MaxFailedAttempts}, nil
}

// ChangePassword re-verifies the current password before accepting the new
// one. It does not touch the revocation ledger: the caller terminates the
// current session and the user logs back in immediately.
func (s *Service) ChangePassword(ctx context.Context, userID uint64, current, newPassword string) (bool, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	// re-fetch by email to obtain the hash; GetByID never exposes it
	withHash, err := s.users.GetByEmail(ctx, u.Email)
	if err != nil {
		return false, err
	}
	if !utils.VerifyPassword(withHash.PasswordHash, current) {
		return false, nil
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return false, err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return false, err
	}
	s.log.Infow("password changed", "user_id", userID)
	return true, nil
}

// ResetPassword is the admin path: it replaces the target's password and
// revokes every outstanding session for that principal, everywhere. Admin
// principals cannot be reset through this path.
func (s *Service) ResetPassword(ctx context.Context, targetID uint64, newPassword string) (model.User, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, repository.ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	if target.IsAdmin {
		return model.User{}, repository.ErrAdminProtected
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	if err := s.users.UpdatePasswordHash(ctx, targetID, hash); err != nil {
		return model.User{}, err
	}
	if err := s.revocations.Revoke(ctx, targetID, s.now(), "admin_password_reset"); err != nil {
		return model.User{}, err
	}
	s.log.Infow("admin password reset",
		"target_id", targetID, "email_hash", utils.HashForLogging(target.Email))
	return target, nil
}

// IsSessionRevoked reports whether a session issued at the given instant has
// been invalidated: true iff a ledger entry exists for the principal and its
// timestamp is strictly after the session's issued-at. A principal with no
// entry is never revoked.
func (s *Service) IsSessionRevoked(ctx context.Context, userID uint64, issuedAt time.Time) (bool, error) {
	revokedAt, ok, err := s.revocations.RevokedAt(ctx, userID)
	if err != nil {
		return false, err
	}
	return ok && revokedAt.After(issuedAt), nil
}
