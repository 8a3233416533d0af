package domain

import "errors"

// Error kinds shared across the core. Business errors wrap exactly one of
// these sentinels so the transport layer can map them to status codes with
// errors.Is without inspecting message text.
var (
	// ErrNotFound means an entity id did not resolve.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the actor lacks rights for the requested operation.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict means the entity is not in the required state, or a
	// concurrent writer won the race for a status transition.
	ErrConflict = errors.New("conflict")

	// ErrInvalid means a malformed reference or cross-entity mismatch,
	// e.g. reviewing a booking one didn't buy.
	ErrInvalid = errors.New("invalid")

	// ErrUnavailable means a transient infrastructure failure; the caller
	// may retry the same request.
	ErrUnavailable = errors.New("store unavailable")
)
