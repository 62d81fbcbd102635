package availability

import "errors"

var (
	// ErrUnknownSessionType is returned for a session type outside the catalog
	ErrUnknownSessionType = errors.New("unknown session type")

	// ErrInvalidHorizon is returned when the requested day horizon is not positive
	ErrInvalidHorizon = errors.New("days must be at least 1")

	// ErrProviderNotFound is returned when the named provider does not exist
	ErrProviderNotFound = errors.New("provider not found")
)
