// Package orchestrator routes lifecycle events to the subsystems they
// affect. It is the single fan-out point for provider- and session-scoped
// side effects; enrollment-scoped fan-out lives inside the timeline engine
// and the dispatcher only delegates to it.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/coachpoint/scheduling-platform/internal/availability"
	"github.com/coachpoint/scheduling-platform/internal/bookings"
	"github.com/coachpoint/scheduling-platform/internal/enrollments"
	"github.com/coachpoint/scheduling-platform/internal/observability/metrics"
	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

var orchestratorTracer = otel.Tracer("coachpoint.internal.orchestrator")

// timeline is the slice of the enrollment engine the dispatcher calls.
type timeline interface {
	Create(ctx context.Context, clientID, startDate, endDate, actor string) (*enrollments.Enrollment, error)
	Pause(ctx context.Context, req enrollments.PauseRequest) (*enrollments.PauseResult, error)
	Resume(ctx context.Context, enrollmentID, actor string) (*enrollments.ResumeResult, error)
	ActivateDelayedStart(ctx context.Context, enrollmentID, actor string) (*enrollments.Enrollment, error)
}

// ledger is the slice of the booking repository the dispatcher calls.
type ledger interface {
	Get(ctx context.Context, bookingID string) (*bookings.Booking, error)
	ListUpcomingByProvider(ctx context.Context, providerID, fromDate string) ([]*bookings.Booking, error)
	UpdateStatus(ctx context.Context, bookingID string, status bookings.Status) error
	Reschedule(ctx context.Context, bookingID, newDate, newTime string) (*bookings.Booking, error)
}

// ruleWriter mutates date-specific availability overrides.
type ruleWriter interface {
	MarkDateUnavailable(ctx context.Context, providerID, date string) error
	ClearDateOverrides(ctx context.Context, providerID, date string) error
}

// providerDirectory flips provider bookability.
type providerDirectory interface {
	SetAvailable(ctx context.Context, providerID string, available bool) error
}

type calendarClient interface {
	CancelEvent(ctx context.Context, eventID string, notify bool) error
	RescheduleEvent(ctx context.Context, eventID, date, startTime string) error
}

type videoBotClient interface {
	CancelBot(ctx context.Context, botID string) error
}

// Dispatcher fans lifecycle events out to the scheduling subsystems.
type Dispatcher struct {
	timeline  timeline
	ledger    ledger
	rules     ruleWriter
	directory providerDirectory
	calendar  calendarClient
	videobot  videoBotClient
	metrics   *metrics.SchedulingMetrics
	logger    *logging.Logger

	// now is injected for tests; defaults to time.Now.
	now func() time.Time
}

// NewDispatcher wires the orchestrator.
func NewDispatcher(tl timeline, lg ledger, rules ruleWriter, dir providerDirectory,
	cal calendarClient, bot videoBotClient, m *metrics.SchedulingMetrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		timeline:  tl,
		ledger:    lg,
		rules:     rules,
		directory: dir,
		calendar:  cal,
		videobot:  bot,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// ErrUnknownEvent is returned for event types outside the allow-list.
var ErrUnknownEvent = errors.New("unknown event type")

// Dispatch validates the event type, decodes the payload, and runs the one
// handler registered for it.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, payload json.RawMessage) Result {
	ctx, span := orchestratorTracer.Start(ctx, "orchestrator.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("coachpoint.event", event))

	if !AllowedEvent(event) {
		d.metrics.ObserveDispatch(event, CodeRejected)
		return rejected(event, fmt.Errorf("%w: %q", ErrUnknownEvent, event))
	}

	var result Result
	switch event {
	case EventEnrollmentCreated:
		result = d.enrollmentCreated(ctx, payload)
	case EventEnrollmentPaused:
		result = d.enrollmentPaused(ctx, payload)
	case EventEnrollmentResumed:
		result = d.enrollmentResumed(ctx, payload)
	case EventDelayedStartActivated:
		result = d.delayedStartActivated(ctx, payload)
	case EventProviderUnavailable:
		result = d.providerUnavailable(ctx, payload)
	case EventProviderAvailable:
		result = d.providerAvailable(ctx, payload)
	case EventProviderExited:
		result = d.providerExited(ctx, payload)
	case EventSessionRescheduled:
		result = d.sessionRescheduled(ctx, payload)
	case EventSessionCancelled:
		result = d.sessionStatusChange(ctx, EventSessionCancelled, payload, bookings.StatusCancelled)
	case EventSessionCompleted:
		result = d.sessionStatusChange(ctx, EventSessionCompleted, payload, bookings.StatusCompleted)
	case EventSessionNoShow:
		result = d.sessionStatusChange(ctx, EventSessionNoShow, payload, bookings.StatusNoShow)
	}

	d.metrics.ObserveDispatch(event, result.Code)
	if !result.Success {
		d.logger.Warn("event not applied", "event", event, "code", result.Code, "error", result.Error)
	}
	return result
}

type enrollmentPayload struct {
	EnrollmentID     string `json:"enrollment_id"`
	ClientID         string `json:"client_id"`
	ProgramStartDate string `json:"program_start_date"`
	ProgramEndDate   string `json:"program_end_date"`
	PauseStartDate   string `json:"pause_start_date"`
	PauseEndDate     string `json:"pause_end_date"`
	PauseReason      string `json:"pause_reason"`
	Actor            string `json:"actor"`
}

func (d *Dispatcher) enrollmentCreated(ctx context.Context, payload json.RawMessage) Result {
	var p enrollmentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return rejected(EventEnrollmentCreated, fmt.Errorf("decode payload: %w", err))
	}
	e, err := d.timeline.Create(ctx, p.ClientID, p.ProgramStartDate, p.ProgramEndDate, actor(p.Actor))
	if err != nil {
		return d.timelineError(EventEnrollmentCreated, err)
	}
	return applied(EventEnrollmentCreated, map[string]any{
		"enrollment_id": e.ID,
		"status":        e.Status,
	})
}

func (d *Dispatcher) enrollmentPaused(ctx context.Context, payload json.RawMessage) Result {
	var p enrollmentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return rejected(EventEnrollmentPaused, fmt.Errorf("decode payload: %w", err))
	}
	result, err := d.timeline.Pause(ctx, enrollments.PauseRequest{
		EnrollmentID: p.EnrollmentID,
		StartDate:    p.PauseStartDate,
		EndDate:      p.PauseEndDate,
		Reason:       p.PauseReason,
		Actor:        actor(p.Actor),
	})
	if err != nil {
		// Re-delivery of a pause that already landed is a success no-op.
		if errors.Is(err, enrollments.ErrAlreadyPaused) {
			return noop(EventEnrollmentPaused, map[string]any{"enrollment_id": p.EnrollmentID})
		}
		return d.timelineError(EventEnrollmentPaused, err)
	}
	return applied(EventEnrollmentPaused, map[string]any{
		"enrollment_id":   p.EnrollmentID,
		"pause_days":      result.PauseDays,
		"paused_sessions": result.PausedSessions,
		"new_end_date":    result.Enrollment.ProgramEndDate,
	})
}

func (d *Dispatcher) enrollmentResumed(ctx context.Context, payload json.RawMessage) Result {
	var p enrollmentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return rejected(EventEnrollmentResumed, fmt.Errorf("decode payload: %w", err))
	}
	result, err := d.timeline.Resume(ctx, p.EnrollmentID, actor(p.Actor))
	if err != nil {
		return d.timelineError(EventEnrollmentResumed, err)
	}
	data := map[string]any{
		"enrollment_id":     p.EnrollmentID,
		"actual_pause_days": result.ActualPauseDays,
		"resumed_sessions":  result.ResumedSessions,
	}
	if !result.Resumed {
		return noop(EventEnrollmentResumed, data)
	}
	return applied(EventEnrollmentResumed, data)
}

func (d *Dispatcher) delayedStartActivated(ctx context.Context, payload json.RawMessage) Result {
	var p enrollmentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return rejected(EventDelayedStartActivated, fmt.Errorf("decode payload: %w", err))
	}
	e, err := d.timeline.ActivateDelayedStart(ctx, p.EnrollmentID, actor(p.Actor))
	if err != nil {
		return d.timelineError(EventDelayedStartActivated, err)
	}
	return applied(EventDelayedStartActivated, map[string]any{
		"enrollment_id": e.ID,
		"status":        e.Status,
	})
}

type providerPayload struct {
	ProviderID string   `json:"provider_id"`
	Dates      []string `json:"dates"`
}

func (d *Dispatcher) providerUnavailable(ctx context.Context, payload json.RawMessage) Result {
	var p providerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return rejected(EventProviderUnavailable, fmt.Errorf("decode payload: %w", err))
	}
	if p.ProviderID == "" || len(p.Dates) == 0 {
		return rejected(EventProviderUnavailable, errors.New("provider_id and dates are required"))
	}

	blocked := make(map[string]struct{}, len(p.Dates))
	for _, date := range p.Dates {
		if err := d.rules.MarkDateUnavailable(ctx, p.ProviderID, date); err != nil {
			return failed(EventProviderUnavailable, err)
		}
		blocked[date] = struct{}{}
	}

	upcoming, err := d.ledger.ListUpcomingByProvider(ctx, p.ProviderID, formatDay(d.now()))
	if err != nil {
		return failed(EventProviderUnavailable, err)
	}
	cancelled := 0
	for _, b := range upcoming {
		if _, hit := blocked[b.Date]; !hit {
			continue
		}
		if err := d.cancelBooking(ctx, b); err != nil {
			return failed(EventProviderUnavailable, err)
		}
		cancelled++
	}
	return applied(EventProviderUnavailable, map[string]any{
		"provider_id":        p.ProviderID,
		"dates_blocked":      len(blocked),
		"sessions_cancelled": cancelled,
	})
}

func (d *Dispatcher) providerAvailable(ctx context.Context, payload json.RawMessage) Result {
	var p providerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return rejected(EventProviderAvailable, fmt.Errorf("decode payload: %w", err))
	}
	if p.ProviderID == "" || len(p.Dates) == 0 {
		return rejected(EventProviderAvailable, errors.New("provider_id and dates are required"))
	}
	for _, date := range p.Dates {
		if err := d.rules.ClearDateOverrides(ctx, p.ProviderID, date); err != nil {
			return failed(EventProviderAvailable, err)
		}
	}
	return applied(EventProviderAvailable, map[string]any{
		"provider_id":   p.ProviderID,
		"dates_cleared": len(p.Dates),
	})
}

func (d *Dispatcher) providerExited(ctx context.Context, payload json.RawMessage) Result {
	var p providerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return rejected(EventProviderExited, fmt.Errorf("decode payload: %w", err))
	}
	if p.ProviderID == "" {
		return rejected(EventProviderExited, errors.New("provider_id is required"))
	}

	if err := d.directory.SetAvailable(ctx, p.ProviderID, false); err != nil {
		if errors.Is(err, availability.ErrProviderNotFound) {
			return rejected(EventProviderExited, err)
		}
		return failed(EventProviderExited, err)
	}

	upcoming, err := d.ledger.ListUpcomingByProvider(ctx, p.ProviderID, formatDay(d.now()))
	if err != nil {
		return failed(EventProviderExited, err)
	}
	for _, b := range upcoming {
		if err := d.cancelBooking(ctx, b); err != nil {
			return failed(EventProviderExited, err)
		}
	}
	return applied(EventProviderExited, map[string]any{
		"provider_id":        p.ProviderID,
		"sessions_cancelled": len(upcoming),
	})
}

type sessionPayload struct {
	BookingID string `json:"booking_id"`
	NewDate   string `json:"new_date"`
	NewTime   string `json:"new_time"`
}

func (d *Dispatcher) sessionRescheduled(ctx context.Context, payload json.RawMessage) Result {
	var p sessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return rejected(EventSessionRescheduled, fmt.Errorf("decode payload: %w", err))
	}
	if p.BookingID == "" || p.NewDate == "" || p.NewTime == "" {
		return rejected(EventSessionRescheduled, errors.New("booking_id, new_date and new_time are required"))
	}

	moved, err := d.ledger.Reschedule(ctx, p.BookingID, p.NewDate, p.NewTime)
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			return rejected(EventSessionRescheduled, err)
		}
		return failed(EventSessionRescheduled, err)
	}

	if moved.CalendarEventID != "" && d.calendar != nil {
		if err := d.calendar.RescheduleEvent(ctx, moved.CalendarEventID, p.NewDate, p.NewTime); err != nil {
			d.logger.Error("calendar reschedule failed",
				"booking_id", moved.ID, "calendar_event_id", moved.CalendarEventID, "error", err)
		}
	}
	return applied(EventSessionRescheduled, map[string]any{
		"booking_id":     moved.ID,
		"old_booking_id": p.BookingID,
		"date":           moved.Date,
		"time":           moved.Time,
	})
}

func (d *Dispatcher) sessionStatusChange(ctx context.Context, event string, payload json.RawMessage, status bookings.Status) Result {
	var p sessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return rejected(event, fmt.Errorf("decode payload: %w", err))
	}
	if p.BookingID == "" {
		return rejected(event, errors.New("booking_id is required"))
	}

	b, err := d.ledger.Get(ctx, p.BookingID)
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			return rejected(event, err)
		}
		return failed(event, err)
	}
	if b.Status == status {
		return noop(event, map[string]any{"booking_id": b.ID, "status": b.Status})
	}

	if err := d.ledger.UpdateStatus(ctx, p.BookingID, status); err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			return rejected(event, err)
		}
		return failed(event, err)
	}

	if status == bookings.StatusCancelled {
		d.teardownExternal(ctx, b)
	}
	return applied(event, map[string]any{"booking_id": b.ID, "status": status})
}

// cancelBooking transitions the ledger row and tears down its external
// resources. Rows that already reached a terminal state are skipped.
func (d *Dispatcher) cancelBooking(ctx context.Context, b *bookings.Booking) error {
	if err := d.ledger.UpdateStatus(ctx, b.ID, bookings.StatusCancelled); err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			return nil
		}
		return err
	}
	d.teardownExternal(ctx, b)
	return nil
}

// teardownExternal is best effort: failures are logged for reconciliation.
func (d *Dispatcher) teardownExternal(ctx context.Context, b *bookings.Booking) {
	if b.CalendarEventID != "" && d.calendar != nil {
		if err := d.calendar.CancelEvent(ctx, b.CalendarEventID, true); err != nil {
			d.logger.Error("calendar cancellation failed",
				"booking_id", b.ID, "calendar_event_id", b.CalendarEventID, "error", err)
		}
	}
	if b.VideoBotID != "" && d.videobot != nil {
		if err := d.videobot.CancelBot(ctx, b.VideoBotID); err != nil {
			d.logger.Error("video bot teardown failed",
				"booking_id", b.ID, "video_bot_id", b.VideoBotID, "error", err)
		}
	}
}

// timelineError sorts engine errors into rejected vs failed.
func (d *Dispatcher) timelineError(event string, err error) Result {
	switch {
	case errors.Is(err, enrollments.ErrEnrollmentNotFound),
		errors.Is(err, enrollments.ErrNotActive),
		errors.Is(err, enrollments.ErrNotPaused),
		errors.Is(err, enrollments.ErrTerminalState),
		errors.Is(err, enrollments.ErrPauseCountExceeded),
		errors.Is(err, enrollments.ErrPauseBudgetExceeded),
		errors.Is(err, enrollments.ErrPauseTooLong),
		errors.Is(err, enrollments.ErrPauseTooShort),
		errors.Is(err, enrollments.ErrInsufficientNotice),
		errors.Is(err, enrollments.ErrInvalidPauseReason),
		errors.Is(err, enrollments.ErrInvalidDate),
		errors.Is(err, enrollments.ErrStartNotDue):
		return rejected(event, err)
	default:
		return failed(event, err)
	}
}

func actor(a string) string {
	if a == "" {
		return "orchestrator"
	}
	return a
}

func formatDay(t time.Time) string {
	return t.Format("2006-01-02")
}
