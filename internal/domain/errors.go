package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// trip, booking, or voucher grant does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. seat count below one or above the trip's capacity).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrForbidden is returned when the acting user is neither the passenger
// nor the owner of the trip a booking belongs to.
var ErrForbidden = errors.New("forbidden")

// ErrInsufficientSeats is returned when a trip cannot cover the requested
// seat count at the moment of the conditional decrement.
var ErrInsufficientSeats = errors.New("insufficient seats")

// ErrSelfBooking is returned when a driver tries to book a seat on their own trip.
var ErrSelfBooking = errors.New("cannot book own trip")

// ErrAlreadyCancelled is returned when cancelling a booking that is already cancelled.
var ErrAlreadyCancelled = errors.New("booking already cancelled")

// ErrInvalidState is returned when a booking transition is not allowed from
// its current status (e.g. accepting a booking that is no longer pending).
var ErrInvalidState = errors.New("invalid booking state")

// Reason is the stable, machine-readable code reported to API callers
// alongside a human-readable message.
type Reason string

const (
	ReasonNotFound          Reason = "not_found"
	ReasonForbidden         Reason = "forbidden"
	ReasonInsufficientSeats Reason = "insufficient_seats"
	ReasonSelfBooking       Reason = "self_booking"
	ReasonAlreadyCancelled  Reason = "already_cancelled"
	ReasonInvalidInput      Reason = "invalid_input"
	ReasonInvalidState      Reason = "invalid_state"
	ReasonInternal          Reason = "internal"
)

// ReasonOf classifies err against the sentinel errors of this package.
// Anything unrecognised is an internal failure (store unavailable and the like).
func ReasonOf(err error) Reason {
	switch {
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrForbidden):
		return ReasonForbidden
	case errors.Is(err, ErrInsufficientSeats):
		return ReasonInsufficientSeats
	case errors.Is(err, ErrSelfBooking):
		return ReasonSelfBooking
	case errors.Is(err, ErrAlreadyCancelled):
		return ReasonAlreadyCancelled
	case errors.Is(err, ErrValidation):
		return ReasonInvalidInput
	case errors.Is(err, ErrInvalidState):
		return ReasonInvalidState
	default:
		return ReasonInternal
	}
}
