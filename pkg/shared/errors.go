package shared

import "errors"

// Error taxonomy shared by every service. Handlers map these to HTTP statuses
// with errors.Is; anything not wrapped here is treated as an internal failure.
var (
	// ErrNotFound marks a requested or referenced entity that does not exist
	// or has been soft-deleted.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a write that was rejected: a uniqueness violation, or
	// an update that matched zero rows on an entity known to exist.
	ErrConflict = errors.New("conflict")

	// ErrValidation marks malformed input rejected before any store access.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable marks a store-level failure (connection loss, timeout).
	// The services never retry; that is an operations concern.
	ErrUnavailable = errors.New("store unavailable")
)
