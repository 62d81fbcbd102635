package availability

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/coachpoint/scheduling-platform/internal/observability/metrics"
	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

// aggregatorWorkers bounds the per-request provider fan-out.
const aggregatorWorkers = 8

// Aggregator merges generator output across providers. Intake bookings are
// provider-agnostic, so a slot is available in the aggregate when any
// provider offers it; the result records which providers do.
type Aggregator struct {
	gen          *Generator
	providers    ProviderDirectory
	maxProviders int
	metrics      *metrics.SchedulingMetrics
	logger       *logging.Logger
}

// NewAggregator constructs an availability aggregator.
func NewAggregator(gen *Generator, providers ProviderDirectory, maxProviders int, m *metrics.SchedulingMetrics, logger *logging.Logger) *Aggregator {
	if gen == nil {
		panic("availability: generator required")
	}
	if maxProviders <= 0 {
		maxProviders = 25
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Aggregator{gen: gen, providers: providers, maxProviders: maxProviders, metrics: m, logger: logger}
}

// GetSlots answers one slot query, either for a single named provider or
// across every eligible provider.
func (a *Aggregator) GetSlots(ctx context.Context, q SlotQuery) (*SlotsResponse, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.get_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("coachpoint.session_type", q.SessionType),
		attribute.Bool("coachpoint.single_provider", q.ProviderID != ""),
	)

	duration, err := ResolveDuration(q.SessionType, q.ClientAge)
	if err != nil {
		return nil, err
	}
	if q.Days < 1 {
		return nil, ErrInvalidHorizon
	}

	if q.ProviderID != "" {
		slots, err := a.gen.Slots(ctx, q.ProviderID, q.Days, duration)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		a.metrics.ObserveSlotsGenerated("single", len(slots))
		return buildResponse(slots, ""), nil
	}

	ids, err := a.providers.ListActiveProviderIDs(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(ids) == 0 {
		return buildResponse(nil, "no eligible providers"), nil
	}
	if len(ids) > a.maxProviders {
		ids = ids[:a.maxProviders]
	}

	merged := a.fanOut(ctx, ids, q.Days, duration)
	a.metrics.ObserveSlotsGenerated("aggregate", len(merged))
	return buildResponse(merged, ""), nil
}

// fanOut runs the generator for each provider on a bounded worker set and
// unions the results. A provider whose rule fetch fails contributes zero
// slots rather than failing the whole request.
func (a *Aggregator) fanOut(ctx context.Context, providerIDs []string, days, duration int) []Slot {
	type result struct {
		providerID string
		slots      []Slot
	}

	jobs := make(chan string)
	results := make(chan result, len(providerIDs))

	workers := aggregatorWorkers
	if len(providerIDs) < workers {
		workers = len(providerIDs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				slots, err := a.gen.Slots(ctx, id, days, duration)
				if err != nil {
					a.logger.Warn("provider excluded from aggregation", "provider_id", id, "error", err)
					continue
				}
				results <- result{providerID: id, slots: slots}
			}
		}()
	}
	for _, id := range providerIDs {
		jobs <- id
	}
	close(jobs)
	wg.Wait()
	close(results)

	merged := make(map[SlotKey]*Slot)
	for res := range results {
		for _, slot := range res.slots {
			key := SlotKey{Date: slot.Date, Time: slot.Time}
			existing, ok := merged[key]
			if !ok {
				copied := slot
				merged[key] = &copied
				continue
			}
			if slot.Available {
				// Available with any provider means available in aggregate.
				if existing.Available {
					existing.ProviderIDs = append(existing.ProviderIDs, res.providerID)
				} else {
					existing.Available = true
					existing.BlockReason = ""
					existing.ProviderIDs = []string{res.providerID}
					existing.DurationMinutes = slot.DurationMinutes
				}
			}
		}
	}

	out := make([]Slot, 0, len(merged))
	for _, slot := range merged {
		sort.Strings(slot.ProviderIDs)
		out = append(out, *slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out
}

func buildResponse(slots []Slot, reason string) *SlotsResponse {
	resp := &SlotsResponse{
		Slots:    slots,
		ByBucket: make(map[string][]Slot),
		ByDate:   make(map[string][]Slot),
		Reason:   reason,
	}
	if resp.Slots == nil {
		resp.Slots = []Slot{}
	}
	for _, slot := range resp.Slots {
		minutes, err := parseClock(slot.Time)
		if err != nil {
			continue
		}
		bucket := bucketFor(minutes)
		resp.ByBucket[bucket] = append(resp.ByBucket[bucket], slot)
		resp.ByDate[slot.Date] = append(resp.ByDate[slot.Date], slot)
	}
	return resp
}
