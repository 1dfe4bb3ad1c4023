package model

import "time"

// User mirrors the 'users' table. PasswordHash is only populated by lookups
// that explicitly need it (credential verification); every other read leaves
// it empty.
type User struct {
	ID           uint64
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}
