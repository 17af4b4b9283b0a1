// Package checkpoint defines domain-specific errors
package checkpoint

import "errors"

var (
	// Validation errors
	ErrInvalidSessionID = errors.New("invalid session ID")

	// Lookup errors
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrStoreUnavailable is returned when the backing store cannot be reached
	// or rejects an operation. Nothing is committed when it occurs.
	ErrStoreUnavailable = errors.New("checkpoint store unavailable")

	// ErrSessionBusy is returned when another run already holds the session.
	ErrSessionBusy = errors.New("session busy")
)
