package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// trip does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. non-positive seats, empty origin, past departure date).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrForbidden is returned when the caller does not own the trip it is trying
// to change, or tries to book a seat on their own trip.
// Handlers should map this to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidState is returned when the trip's status (or departure date) does
// not allow the requested operation, e.g. cancelling a cancelled trip.
// Handlers should map this to HTTP 409.
var ErrInvalidState = errors.New("invalid state")

// ErrSeatsExhausted is returned when a booking is attempted on a trip with no
// available seats. Handlers should map this to HTTP 409.
var ErrSeatsExhausted = errors.New("seats exhausted")

// ErrDuplicate is returned by repos when an insert collides with a uniqueness
// constraint (a driver reusing an idempotency key). It never reaches handlers:
// the service resolves it to the previously created trip.
var ErrDuplicate = errors.New("duplicate")
