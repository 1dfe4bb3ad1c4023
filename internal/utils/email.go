package utils

import "strings"

// NormalizeEmail trims and lowercases a login identifier. Every read and
// write keyed by identifier must go through this, or lockout state silently
// partitions by case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
