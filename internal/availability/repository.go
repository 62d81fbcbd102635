package availability

import "context"

// RuleRepository reads a provider's availability rules.
type RuleRepository interface {
	ListActiveByProvider(ctx context.Context, providerID string) ([]Rule, error)
}

// ProviderDirectory lists providers eligible for provider-agnostic booking.
type ProviderDirectory interface {
	ListActiveProviderIDs(ctx context.Context) ([]string, error)
}

// BookingLookup exposes the (date, time) keys occupied by active bookings
// for a provider within a date range.
type BookingLookup interface {
	ActiveKeys(ctx context.Context, providerID, fromDate, toDate string) (map[SlotKey]struct{}, error)
}

// HoldLookup exposes the (date, time) keys claimed by unexpired holds for a
// provider within a date range. Expired holds must not appear.
type HoldLookup interface {
	UnexpiredKeys(ctx context.Context, providerID, fromDate, toDate string) (map[SlotKey]struct{}, error)
}
