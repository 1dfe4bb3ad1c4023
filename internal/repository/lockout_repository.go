package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/mfreitas/stockholder-portal/internal/utils"
)

// LockoutRepo persists failed authentication attempts keyed by normalized
// email. The guard derives "locked" from the trailing-window count, so there
// is no persistent locked flag to reset: rows aging out of the window unlock
// the account by themselves.
type LockoutRepo struct{ DB *sql.DB }

func NewLockoutRepo(db *sql.DB) *LockoutRepo { return &LockoutRepo{DB: db} }

// RecordFailure appends one failed attempt for an email. The email is
// lowercased here so state never partitions by case.
func (r *LockoutRepo) RecordFailure(ctx context.Context, email, origin string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO failed_login_attempts (email, ip_address, attempt_time) VALUES (?,?,?)",
		utils.NormalizeEmail(email), origin, at.UTC())
	return err
}

// CountSince returns the number of failures for an email newer than the
// window start.
func (r *LockoutRepo) CountSince(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM failed_login_attempts WHERE email=? AND attempt_time > ?",
		utils.NormalizeEmail(email), since.UTC()).Scan(&n)
	return n, err
}

// Clear deletes every failure record for an email. Called only after a
// verified successful authentication; clearing an empty history is a no-op.
func (r *LockoutRepo) Clear(ctx context.Context, email string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM failed_login_attempts WHERE email=?", utils.NormalizeEmail(email))
	return err
}
