// Package repository holds the SQL data access layer. Sentinel errors let
// handlers map failure scenarios to HTTP responses without inspecting
// driver-specific errors.
package repository

import "errors"

// ErrEmailExists is returned when an insert or update would violate the
// one-principal-per-email uniqueness invariant.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a targeted row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAdminProtected is returned when an operation is attempted against an
// admin-flagged principal that only applies to regular stockholders
// (delete, profile update, admin password reset).
var ErrAdminProtected = errors.New("operation forbidden for admin users")
