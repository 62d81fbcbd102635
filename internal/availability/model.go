package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RuleScope distinguishes recurring weekly rules from date-specific overrides.
type RuleScope string

// RuleKind marks a rule window as available or unavailable.
type RuleKind string

const (
	ScopeWeekly       RuleScope = "weekly"
	ScopeDateSpecific RuleScope = "date_specific"

	KindAvailable   RuleKind = "available"
	KindUnavailable RuleKind = "unavailable"
)

// Rule is a single availability rule belonging to one provider. Weekly
// available rules define the provider's default working windows;
// date-specific unavailable rules veto a whole day regardless of weekly
// rules. Rules are managed by provider tooling and read-only here.
type Rule struct {
	ID           string    `json:"id"`
	ProviderID   string    `json:"provider_id"`
	Scope        RuleScope `json:"scope"`
	Kind         RuleKind  `json:"kind"`
	DayOfWeek    int       `json:"day_of_week"`   // 0=Sunday..6=Saturday, valid iff weekly
	SpecificDate string    `json:"specific_date"` // YYYY-MM-DD, valid iff date_specific
	StartTime    string    `json:"start_time"`    // HH:MM
	EndTime      string    `json:"end_time"`      // HH:MM, must be after StartTime
	Active       bool      `json:"active"`
}

// SlotKey identifies one bookable (date, time) tuple for a provider.
type SlotKey struct {
	Date string
	Time string
}

// Slot is a candidate bookable window produced by the generator.
type Slot struct {
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	DurationMinutes int      `json:"duration_minutes"`
	Available       bool     `json:"available"`
	BlockReason     string   `json:"block_reason,omitempty"`
	ProviderIDs     []string `json:"provider_ids"`
}

// SlotQuery describes one availability request.
type SlotQuery struct {
	ProviderID  string
	Days        int
	SessionType string
	ClientAge   *int
}

// SlotsResponse is the aggregator output: the flat ordered slot list plus
// presentation groupings. Reason is set when the slot set is empty for a
// non-error cause (e.g. no eligible providers).
type SlotsResponse struct {
	Slots    []Slot            `json:"slots"`
	ByBucket map[string][]Slot `json:"grouped_by_time_bucket"`
	ByDate   map[string][]Slot `json:"grouped_by_date"`
	Reason   string            `json:"reason,omitempty"`
}

// parseClock converts "HH:MM" (seconds tolerated and stripped) to minutes
// since midnight. All slot arithmetic runs on these integers to avoid
// floating point and timezone drift.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("availability: bad clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("availability: bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("availability: bad minute in %q", s)
	}
	return h*60 + m, nil
}

// formatClock renders minutes since midnight as HH:MM.
func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// dayString renders a time as the naive YYYY-MM-DD day key.
func dayString(t time.Time) string {
	return t.Format("2006-01-02")
}

// Time-of-day buckets used purely for presentation grouping.
const (
	BucketEarlyMorning = "early_morning"
	BucketMorning      = "morning"
	BucketAfternoon    = "afternoon"
	BucketEvening      = "evening"
	BucketNight        = "night"
)

func bucketFor(minutes int) string {
	switch {
	case minutes < 9*60:
		return BucketEarlyMorning
	case minutes < 12*60:
		return BucketMorning
	case minutes < 17*60:
		return BucketAfternoon
	case minutes < 21*60:
		return BucketEvening
	default:
		return BucketNight
	}
}
