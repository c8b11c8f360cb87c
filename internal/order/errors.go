package order

import "errors"

// Error kinds. Every failure the engine can produce wraps exactly one of
// these sentinels; callers classify with errors.Is and the HTTP layer maps
// each kind to a status code. Anything not wrapping a sentinel is an
// internal error and stays opaque to clients.
var (
	// ErrInvalidOrder marks a malformed or semantically invalid request:
	// empty line list, unknown status string, bad address ownership.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrNotFound marks a referenced entity (order, menu item, add-on,
	// address) that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an authenticated caller not entitled to the
	// requested order or action.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict marks a valid request rejected by current state:
	// cancelling a terminal order, losing a concurrent status race.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable marks a menu item or add-on that exists but is not
	// currently orderable.
	ErrUnavailable = errors.New("unavailable")
)
