package holds

import "time"

// Hold is a short-lived claim on exactly one (provider, date, time) tuple.
// At most one unexpired hold may exist per tuple; expiry is wall-clock and
// enforced at read time, so readers never assume a sweep has run.
type Hold struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Time       string    `json:"time"` // HH:MM
	ExpiresAt  time.Time `json:"expires_at"`
}

// PlaceHoldRequest is the request body for placing a hold.
type PlaceHoldRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

// Validate checks the request shape.
func (r *PlaceHoldRequest) Validate() error {
	if r.ProviderID == "" {
		return ErrMissingProvider
	}
	if r.Date == "" || r.Time == "" {
		return ErrMissingSlot
	}
	return nil
}
