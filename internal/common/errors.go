// Package common defines shared constants and sentinel errors used across
// client and server layers of journalkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// ErrStaleWrite is returned when a push is older than the stored row.
	ErrStaleWrite = errors.New("stale write")

	// ErrAssessmentLocked is returned while the weekly self-check cooldown runs.
	ErrAssessmentLocked = errors.New("assessment locked")

	// ErrInvalidDateKey rejects keys that are not YYYY-MM-DD.
	ErrInvalidDateKey = errors.New("invalid date key")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
