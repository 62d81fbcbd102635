package holds

import "errors"

var (
	// ErrSlotHeld is returned when an unexpired hold already claims the slot
	ErrSlotHeld = errors.New("slot is already held")

	// ErrSlotBooked is returned when an active booking occupies the slot
	ErrSlotBooked = errors.New("slot is already booked")

	// ErrHoldNotFound is returned when releasing an unknown or expired hold
	ErrHoldNotFound = errors.New("hold not found")

	// ErrMissingProvider is returned when the provider id is absent
	ErrMissingProvider = errors.New("provider_id is required")

	// ErrMissingSlot is returned when the date or time is absent
	ErrMissingSlot = errors.New("date and time are required")
)
