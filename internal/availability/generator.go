package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

var availabilityTracer = otel.Tracer("coachpoint.internal.availability")

// GeneratorConfig bounds and tunes slot generation.
type GeneratorConfig struct {
	GridMinutes     int
	MaxHorizonDays  int
	LeadTimeMinutes int
	DefaultDayStart string // fallback window when a provider has no weekly rules
	DefaultDayEnd   string
	WeeklyDayOff    int // globally non-working weekday, 0=Sunday

	// Now is injected for tests; defaults to time.Now.
	Now func() time.Time
}

// Generator resolves a provider's availability rules into concrete bookable
// slots over a date horizon, consulting the booking ledger and hold table
// to mark occupied keys.
type Generator struct {
	rules    RuleRepository
	bookings BookingLookup
	holds    HoldLookup
	cfg      GeneratorConfig
	logger   *logging.Logger
}

// NewGenerator constructs a slot generator.
func NewGenerator(rules RuleRepository, bookings BookingLookup, holds HoldLookup, cfg GeneratorConfig, logger *logging.Logger) *Generator {
	if rules == nil {
		panic("availability: rule repository required")
	}
	if cfg.GridMinutes <= 0 {
		cfg.GridMinutes = 30
	}
	if cfg.MaxHorizonDays <= 0 {
		cfg.MaxHorizonDays = 30
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{rules: rules, bookings: bookings, holds: holds, cfg: cfg, logger: logger}
}

// window is a resolved availability window in minutes since midnight.
type window struct {
	start int
	end   int
}

// Slots produces the ordered candidate slots for one provider. Each
// candidate is flagged available or blocked; blocked candidates carry the
// blocking reason.
func (g *Generator) Slots(ctx context.Context, providerID string, days, durationMinutes int) ([]Slot, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("coachpoint.provider_id", providerID),
		attribute.Int("coachpoint.horizon_days", days),
	)

	if days < 1 {
		return nil, ErrInvalidHorizon
	}
	if days > g.cfg.MaxHorizonDays {
		days = g.cfg.MaxHorizonDays
	}

	rules, err := g.rules.ListActiveByProvider(ctx, providerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("availability: fetch rules for %s: %w", providerID, err)
	}

	now := g.cfg.Now()
	today := dayString(now)
	lastDay := dayString(now.AddDate(0, 0, days-1))

	booked, err := g.occupiedBookings(ctx, providerID, today, lastDay)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	held, err := g.occupiedHolds(ctx, providerID, today, lastDay)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	weekly, vetoDates := splitRules(rules)
	hasWeekly := len(weekly) > 0

	var slots []Slot
	for offset := 0; offset < days; offset++ {
		day := now.AddDate(0, 0, offset)
		date := dayString(day)
		weekday := int(day.Weekday())

		// Hard vetoes apply before weekly rules are even consulted.
		if weekday == g.cfg.WeeklyDayOff {
			continue
		}
		if _, vetoed := vetoDates[date]; vetoed {
			continue
		}

		windows := weekly[weekday]
		if !hasWeekly {
			// A provider with zero weekly rules is unconfigured, not
			// unavailable: synthesize the default full-day window.
			w, err := g.defaultWindow()
			if err != nil {
				return nil, err
			}
			windows = []window{w}
		}

		for _, w := range windows {
			start := snapUp(w.start, g.cfg.GridMinutes)
			for t := start; t+durationMinutes <= w.end; t += g.cfg.GridMinutes {
				if date == today {
					nowMinutes := now.Hour()*60 + now.Minute()
					if t < nowMinutes+g.cfg.LeadTimeMinutes {
						continue
					}
				}
				slot := Slot{
					Date:            date,
					Time:            formatClock(t),
					DurationMinutes: durationMinutes,
					Available:       true,
					ProviderIDs:     []string{providerID},
				}
				key := SlotKey{Date: date, Time: slot.Time}
				if _, ok := booked[key]; ok {
					slot.Available = false
					slot.BlockReason = "booked"
				} else if _, ok := held[key]; ok {
					slot.Available = false
					slot.BlockReason = "held"
				}
				slots = append(slots, slot)
			}
		}
	}

	span.SetAttributes(attribute.Int("coachpoint.slot_count", len(slots)))
	return slots, nil
}

func (g *Generator) occupiedBookings(ctx context.Context, providerID, from, to string) (map[SlotKey]struct{}, error) {
	if g.bookings == nil {
		return nil, nil
	}
	keys, err := g.bookings.ActiveKeys(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability: booking occupancy for %s: %w", providerID, err)
	}
	return keys, nil
}

func (g *Generator) occupiedHolds(ctx context.Context, providerID, from, to string) (map[SlotKey]struct{}, error) {
	if g.holds == nil {
		return nil, nil
	}
	keys, err := g.holds.UnexpiredKeys(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability: hold occupancy for %s: %w", providerID, err)
	}
	return keys, nil
}

func (g *Generator) defaultWindow() (window, error) {
	start, err := parseClock(g.cfg.DefaultDayStart)
	if err != nil {
		return window{}, fmt.Errorf("availability: default day start: %w", err)
	}
	end, err := parseClock(g.cfg.DefaultDayEnd)
	if err != nil {
		return window{}, fmt.Errorf("availability: default day end: %w", err)
	}
	return window{start: start, end: end}, nil
}

// splitRules partitions active rules into weekly available windows keyed by
// weekday and the set of hard-vetoed dates. Malformed windows are skipped
// with a log line rather than failing the whole provider.
func splitRules(rules []Rule) (map[int][]window, map[string]struct{}) {
	weekly := make(map[int][]window)
	vetoes := make(map[string]struct{})
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		switch {
		case rule.Scope == ScopeDateSpecific && rule.Kind == KindUnavailable:
			vetoes[rule.SpecificDate] = struct{}{}
		case rule.Scope == ScopeWeekly && rule.Kind == KindAvailable:
			start, err := parseClock(rule.StartTime)
			if err != nil {
				continue
			}
			end, err := parseClock(rule.EndTime)
			if err != nil || end <= start {
				continue
			}
			weekly[rule.DayOfWeek] = append(weekly[rule.DayOfWeek], window{start: start, end: end})
		}
	}
	return weekly, vetoes
}

// snapUp rounds minutes up to the next grid boundary.
func snapUp(minutes, grid int) int {
	if rem := minutes % grid; rem != 0 {
		return minutes + grid - rem
	}
	return minutes
}
