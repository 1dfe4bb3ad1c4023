package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/mfreitas/stockholder-portal/internal/model"
)

// UserRepo is the credential store accessor plus the principal CRUD used by
// the admin surface.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByEmail fetches a principal by normalized email, including the password
// hash for credential verification. sql.ErrNoRows when absent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,email,password_hash,is_admin,created_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	return u, err
}

// GetByID fetches a principal by id. The password hash is not selected.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,email,is_admin,created_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.CreatedAt)
	return u, err
}

// Create inserts a stockholder together with their initial holding in one
// transaction and returns the new id.
func (r *UserRepo) Create(ctx context.Context, name, email, passwordHash string, initialStocks int64) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash) VALUES (?,?,?)",
		name, email, passwordHash)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO stocks (user_id, stock_count) VALUES (?,?)",
		id, initialStocks); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdateProfile updates name, email and stock count atomically. Admin
// principals cannot be edited through this path. A uniqueness violation on
// the new email rolls the whole update back and reports ErrEmailExists.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name, email string, stockCount int64) error {
	email = strings.ToLower(strings.TrimSpace(email))
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE users SET name=?, email=? WHERE id=? AND is_admin=FALSE",
		name, email, id)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// either no such user or an admin-flagged one; check which
		var isAdmin bool
		switch tx.QueryRowContext(ctx, "SELECT is_admin FROM users WHERE id=?", id).Scan(&isAdmin) {
		case sql.ErrNoRows:
			return ErrNotFound
		case nil:
			if isAdmin {
				return ErrAdminProtected
			}
			// row existed with identical values; fall through
		}
	}

	var stockID uint64
	err = tx.QueryRowContext(ctx, "SELECT id FROM stocks WHERE user_id=? LIMIT 1", id).Scan(&stockID)
	switch err {
	case nil:
		_, err = tx.ExecContext(ctx,
			"UPDATE stocks SET stock_count=?, last_updated=NOW(6) WHERE user_id=?",
			stockCount, id)
	case sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			"INSERT INTO stocks (user_id, stock_count) VALUES (?,?)", id, stockCount)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// UpdatePasswordHash replaces a principal's password hash.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a non-admin principal and their holding. Admin principals
// cannot be deleted.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	var isAdmin bool
	err := r.DB.QueryRowContext(ctx, "SELECT is_admin FROM users WHERE id=?", id).Scan(&isAdmin)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if isAdmin {
		return ErrAdminProtected
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM stocks WHERE user_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=? AND is_admin=FALSE", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// ListStockholders returns all non-admin principals joined with their stock
// counts, ordered by name. Percentage computation is left to the caller.
func (r *UserRepo) ListStockholders(ctx context.Context) ([]model.Stockholder, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, COALESCE(s.stock_count, 0)
		FROM users u
		LEFT JOIN stocks s ON u.id = s.user_id
		WHERE u.is_admin = FALSE
		ORDER BY u.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Stockholder
	for rows.Next() {
		var s model.Stockholder
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.StockCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// isDuplicate detects the MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
