package repository

import (
	"context"
	"database/sql"
	"time"
)

// RevocationRepo persists at most one revocation entry per principal. A new
// revocation unconditionally replaces the previous one (last write wins; no
// monotonic-timestamp guard, so a writer with a lagging clock can shorten the
// revocation horizon — a documented trade-off, not enforced here).
type RevocationRepo struct{ DB *sql.DB }

func NewRevocationRepo(db *sql.DB) *RevocationRepo { return &RevocationRepo{DB: db} }

// Revoke upserts the revocation entry for a principal with the given
// timestamp and reason.
func (r *RevocationRepo) Revoke(ctx context.Context, userID uint64, at time.Time, reason string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO session_revocations (user_id, revoked_at, reason) VALUES (?,?,?)
		ON DUPLICATE KEY UPDATE revoked_at=VALUES(revoked_at), reason=VALUES(reason)`,
		userID, at.UTC(), reason)
	return err
}

// RevokedAt returns the revocation timestamp for a principal. ok is false
// when no entry exists, in which case the principal is never considered
// revoked.
func (r *RevocationRepo) RevokedAt(ctx context.Context, userID uint64) (time.Time, bool, error) {
	var at time.Time
	err := r.DB.QueryRowContext(ctx,
		"SELECT revoked_at FROM session_revocations WHERE user_id=? LIMIT 1",
		userID).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}
