// Package queue defines message payloads exchanged over the message broker.
package queue

// Event kinds published by the portal.
const (
	KindAccountLocked      = "account_locked"
	KindAdminPasswordReset = "admin_password_reset"
	KindStockholderCreated = "stockholder_created"
	KindStockholderDeleted = "stockholder_deleted"
)

// SecurityEvent is published on security-relevant transitions so downstream
// consumers can alert or audit without querying the primary database.
// Identifiers travel hashed, never raw.
type SecurityEvent struct {
	Kind      string `json:"kind"`
	UserID    uint64 `json:"user_id,omitempty"`
	EmailHash string `json:"email_hash,omitempty"`
	Origin    string `json:"origin,omitempty"`
	Detail    string `json:"detail,omitempty"`
	At        string `json:"at"` // RFC 3339 UTC
}
