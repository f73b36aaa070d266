// Package common defines shared helpers and sentinel errors used across
// the sync subsystem. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Sync preconditions (recoverable by user action).
	ErrNotConfigured    = errors.New("sync is not configured")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Transient network/provider failures (recoverable by retry).
	ErrProbe    = errors.New("remote probe failed")
	ErrExchange = errors.New("exchange failed")

	// Malformed credentials or input; not retryable without correction.
	ErrValidation = errors.New("validation error")
)
