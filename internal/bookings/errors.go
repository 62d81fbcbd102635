package bookings

import "errors"

var (
	// ErrBookingNotFound is returned when a booking id is unknown
	ErrBookingNotFound = errors.New("booking not found")

	// ErrHoldGone is returned when the hold backing a confirmation has
	// expired or was released before the confirmation landed
	ErrHoldGone = errors.New("hold expired or not found")

	// ErrMissingHold is returned when the hold id is absent
	ErrMissingHold = errors.New("hold_id is required")

	// ErrMissingClient is returned when the client id is absent
	ErrMissingClient = errors.New("client_id is required")

	// ErrMissingSessionType is returned when the session type is absent
	ErrMissingSessionType = errors.New("session_type is required")

	// ErrInvalidDuration is returned for a non-positive duration
	ErrInvalidDuration = errors.New("duration_minutes must be positive")

	// ErrInvalidTransition is returned for a disallowed status change
	ErrInvalidTransition = errors.New("invalid booking status transition")
)
