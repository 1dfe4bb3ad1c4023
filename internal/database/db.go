package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/mfreitas/stockholder-portal/internal/utils"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		name VARCHAR(100),
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS stocks (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		stock_count BIGINT NOT NULL DEFAULT 0,
		last_updated DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		notes TEXT,
		FOREIGN KEY (user_id) REFERENCES users (id)
	)`,
	`CREATE TABLE IF NOT EXISTS company_info (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		total_stocks BIGINT NOT NULL DEFAULT 0,
		company_name VARCHAR(255) NOT NULL,
		last_updated DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS login_attempts (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		ip_address VARCHAR(45) NOT NULL,
		attempt_time DATETIME(6) NOT NULL,
		INDEX idx_login_attempts_ip_time (ip_address, attempt_time)
	)`,
	`CREATE TABLE IF NOT EXISTS failed_login_attempts (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		email VARCHAR(255) NOT NULL,
		ip_address VARCHAR(45) NOT NULL,
		attempt_time DATETIME(6) NOT NULL,
		INDEX idx_email_time (email, attempt_time)
	)`,
	`CREATE TABLE IF NOT EXISTS session_revocations (
		user_id BIGINT UNSIGNED PRIMARY KEY,
		revoked_at DATETIME(6) NOT NULL,
		reason VARCHAR(64)
	)`,
}

// InitSchema creates all tables on first run. Statements are idempotent.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin principal when no admin exists.
// The password comes from adminPassword; when empty a random one is generated
// and printed exactly once so the operator can log in and change it.
func EnsureAdmin(ctx context.Context, db *sql.DB, adminPassword string, bcryptCost int) error {
	var id uint64
	err := db.QueryRowContext(ctx, "SELECT id FROM users WHERE is_admin = TRUE LIMIT 1").Scan(&id)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	generated := false
	if adminPassword == "" {
		adminPassword, err = randomPassword(16)
		if err != nil {
			return err
		}
		generated = true
	}
	hash, err := utils.HashPassword(adminPassword, bcryptCost)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, is_admin) VALUES (?,?,?,TRUE)",
		"Administrator", "admin", hash)
	if err != nil {
		return err
	}
	adminID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO stocks (user_id, stock_count, notes) VALUES (?,0,?)",
		adminID, "Administrator account"); err != nil {
		return err
	}

	if generated {
		fmt.Println("\n============================================================")
		fmt.Println("IMPORTANT: Default admin account created!")
		fmt.Println("Email: admin")
		fmt.Printf("Password: %s\n", adminPassword)
		fmt.Println("Please change this password immediately after first login!")
		fmt.Println("============================================================")
	}
	return nil
}

// EnsureCompany seeds the single company_info row when missing.
func EnsureCompany(ctx context.Context, db *sql.DB, companyName string) error {
	var id uint64
	err := db.QueryRowContext(ctx, "SELECT id FROM company_info LIMIT 1").Scan(&id)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO company_info (total_stocks, company_name) VALUES (?,?)",
		1000000, companyName)
	return err
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*(),.?\":{}|<>"

func randomPassword(n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = passwordAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
