package repository

import (
	"context"
	"database/sql"
	"time"
)

// AttemptRepo persists login attempts keyed by network origin. Rows are
// append-only and carry no relation to any principal; they exist solely so
// the rate limiter can count a sliding window per origin.
type AttemptRepo struct{ DB *sql.DB }

func NewAttemptRepo(db *sql.DB) *AttemptRepo { return &AttemptRepo{DB: db} }

// Record appends one attempt for an origin.
func (r *AttemptRepo) Record(ctx context.Context, origin string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO login_attempts (ip_address, attempt_time) VALUES (?,?)",
		origin, at.UTC())
	return err
}

// CountSince returns the number of attempts for an origin newer than the
// window start.
func (r *AttemptRepo) CountSince(ctx context.Context, origin string, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM login_attempts WHERE ip_address=? AND attempt_time > ?",
		origin, since.UTC()).Scan(&n)
	return n, err
}

// DeleteOlderThan purges attempts past their useful age. Invoked from the
// startup sweep; content is never a deletion criterion, only age.
func (r *AttemptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM login_attempts WHERE attempt_time < ?", cutoff.UTC())
	return err
}
