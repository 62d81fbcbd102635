package enrollments

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/coachpoint/scheduling-platform/internal/observability/metrics"
	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

var enrollmentsTracer = otel.Tracer("coachpoint.internal.enrollments")

// Engine owns every enrollment timeline transition. Enrollment rows are
// mutated exclusively through it, and the enrollment-state write always
// commits before any external-resource call is attempted: calendar and
// video-bot teardown failures are logged for reconciliation, never rolled
// back into the transition.
type Engine struct {
	store    Store
	events   EventAppender
	bookings BookingLedger
	calendar CalendarClient
	videobot VideoBotClient
	limits   Limits
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger

	// now is injected for tests; defaults to time.Now.
	now func() time.Time
}

// NewEngine constructs the timeline engine.
func NewEngine(store Store, events EventAppender, bookings BookingLedger,
	calendar CalendarClient, videobot VideoBotClient, limits Limits,
	m *metrics.SchedulingMetrics, logger *logging.Logger) *Engine {
	if store == nil {
		panic("enrollments: store required")
	}
	if limits.MaxPauseCount <= 0 {
		limits = DefaultLimits()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:    store,
		events:   events,
		bookings: bookings,
		calendar: calendar,
		videobot: videobot,
		limits:   limits,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Pause transitions active → paused over the requested window. The pause
// count is charged immediately: it counts pauses started, not completed.
func (en *Engine) Pause(ctx context.Context, req PauseRequest) (*PauseResult, error) {
	ctx, span := enrollmentsTracer.Start(ctx, "enrollments.pause")
	defer span.End()
	span.SetAttributes(attribute.String("coachpoint.enrollment_id", req.EnrollmentID))

	e, err := en.store.Get(ctx, req.EnrollmentID)
	if err != nil {
		return nil, err
	}

	pauseDays, err := en.validatePause(e, req)
	if err != nil {
		en.metrics.ObservePause("pause", "rejected")
		return nil, err
	}

	if e.OriginalEndDate == "" {
		// First pause: preserve the pre-pause end date so later resumes
		// charge against it instead of compounding.
		e.OriginalEndDate = e.ProgramEndDate
	}
	newEnd, err := addDays(e.ProgramEndDate, pauseDays)
	if err != nil {
		return nil, fmt.Errorf("%w: program end date: %v", ErrInvalidDate, err)
	}
	e.ProgramEndDate = newEnd
	e.Status = StatusPaused
	e.PauseStartDate = req.StartDate
	e.PauseEndDate = req.EndDate
	e.PauseReason = req.Reason
	e.PauseCount++

	if err := en.store.ApplyPause(ctx, e); err != nil {
		span.RecordError(err)
		return nil, err
	}
	en.appendEvent(ctx, e.ID, EventPaused, req.Actor, map[string]any{
		"pause_start_date": req.StartDate,
		"pause_end_date":   req.EndDate,
		"pause_reason":     req.Reason,
		"pause_days":       pauseDays,
		"program_end_date": e.ProgramEndDate,
	})

	paused := en.pauseBookings(ctx, e.ID, req.StartDate, req.EndDate)

	en.metrics.ObservePause("pause", "applied")
	en.logger.Info("enrollment paused",
		"enrollment_id", e.ID,
		"pause_days", pauseDays,
		"paused_sessions", paused,
		"new_end_date", e.ProgramEndDate,
	)
	return &PauseResult{Enrollment: e, PauseDays: pauseDays, PausedSessions: paused}, nil
}

func (en *Engine) validatePause(e *Enrollment, req PauseRequest) (int, error) {
	switch {
	case e.Status == StatusPaused:
		return 0, ErrAlreadyPaused
	case e.terminal():
		return 0, ErrTerminalState
	case e.Status != StatusActive:
		return 0, ErrNotActive
	}
	if e.PauseCount >= en.limits.MaxPauseCount {
		return 0, fmt.Errorf("%w: maximum %d pauses allowed", ErrPauseCountExceeded, en.limits.MaxPauseCount)
	}
	if !ValidPauseReason(req.Reason) {
		return 0, ErrInvalidPauseReason
	}

	start, err := parseDay(req.StartDate)
	if err != nil {
		return 0, fmt.Errorf("%w: pause start %q", ErrInvalidDate, req.StartDate)
	}
	end, err := parseDay(req.EndDate)
	if err != nil {
		return 0, fmt.Errorf("%w: pause end %q", ErrInvalidDate, req.EndDate)
	}

	earliest := en.now().Add(time.Duration(en.limits.MinNoticeHours) * time.Hour)
	if req.StartDate < formatDay(earliest) {
		return 0, fmt.Errorf("%w: at least %d hours required", ErrInsufficientNotice, en.limits.MinNoticeHours)
	}

	pauseDays := daysBetween(start, end)
	if pauseDays < 1 {
		return 0, ErrPauseTooShort
	}
	if pauseDays > en.limits.MaxPauseDaysSingle {
		return 0, fmt.Errorf("%w: maximum %d days per pause", ErrPauseTooLong, en.limits.MaxPauseDaysSingle)
	}
	if remaining := en.limits.MaxPauseDaysTotal - e.TotalPauseDays; pauseDays > remaining {
		return 0, fmt.Errorf("%w: only %d pause days remaining", ErrPauseBudgetExceeded, remaining)
	}
	return pauseDays, nil
}

// Resume transitions paused → active. The program is charged for days
// actually missed, never the days originally requested: a client who
// returns 3 days into a 10-day pause owes the program exactly 3 days.
// Resuming an already-active enrollment is a reported no-op, so duplicate
// triggers are harmless.
func (en *Engine) Resume(ctx context.Context, enrollmentID, actor string) (*ResumeResult, error) {
	ctx, span := enrollmentsTracer.Start(ctx, "enrollments.resume")
	defer span.End()
	span.SetAttributes(attribute.String("coachpoint.enrollment_id", enrollmentID))

	e, err := en.store.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	if e.Status == StatusActive {
		en.metrics.ObservePause("resume", "noop")
		return &ResumeResult{Enrollment: e, Resumed: false}, nil
	}
	if e.Status != StatusPaused {
		en.metrics.ObservePause("resume", "rejected")
		return nil, ErrNotPaused
	}

	pauseStart, err := parseDay(e.PauseStartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: stored pause start %q", ErrInvalidDate, e.PauseStartDate)
	}
	today, _ := parseDay(formatDay(en.now()))
	actualDays := daysBetween(pauseStart, today)
	if actualDays < 0 {
		actualDays = 0
	}

	// Anchor on the original end date so back-to-back pause cycles never
	// compound: end = original + total days actually missed so far.
	newEnd, err := addDays(e.OriginalEndDate, e.TotalPauseDays+actualDays)
	if err != nil {
		return nil, fmt.Errorf("%w: original end date: %v", ErrInvalidDate, err)
	}
	e.ProgramEndDate = newEnd
	e.TotalPauseDays += actualDays
	e.Status = StatusActive
	e.PauseStartDate = ""
	e.PauseEndDate = ""
	e.PauseReason = ""

	if err := en.store.ApplyResume(ctx, e); err != nil {
		span.RecordError(err)
		return nil, err
	}
	en.appendEvent(ctx, e.ID, EventResumed, actor, map[string]any{
		"actual_pause_days": actualDays,
		"total_pause_days":  e.TotalPauseDays,
		"program_end_date":  e.ProgramEndDate,
	})

	var resumedSessions int64
	if en.bookings != nil {
		resumedSessions, err = en.bookings.ReactivatePaused(ctx, e.ID, formatDay(en.now()))
		if err != nil {
			// Enrollment state already committed; session reactivation is
			// reconciled manually if this fails.
			en.logger.Error("failed to reactivate paused sessions", "enrollment_id", e.ID, "error", err)
		}
	}

	en.metrics.ObservePause("resume", "applied")
	en.logger.Info("enrollment resumed",
		"enrollment_id", e.ID,
		"actual_pause_days", actualDays,
		"program_end_date", e.ProgramEndDate,
	)
	return &ResumeResult{
		Enrollment:      e,
		Resumed:         true,
		ActualPauseDays: actualDays,
		ResumedSessions: resumedSessions,
	}, nil
}

// ActivateDelayedStart transitions pending_start → active once the
// requested start date has arrived.
func (en *Engine) ActivateDelayedStart(ctx context.Context, enrollmentID, actor string) (*Enrollment, error) {
	e, err := en.store.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.Status == StatusActive {
		return e, nil // duplicate trigger
	}
	if e.Status != StatusPendingStart {
		return nil, ErrTerminalState
	}
	today := formatDay(en.now())
	startDate := e.ProgramStartDate
	if startDate == "" {
		startDate = today
	}
	if startDate > today {
		return nil, ErrStartNotDue
	}

	if err := en.store.UpdateStatus(ctx, enrollmentID, StatusActive, startDate); err != nil {
		return nil, err
	}
	e.Status = StatusActive
	e.ProgramStartDate = startDate
	en.appendEvent(ctx, e.ID, EventStarted, actor, map[string]any{
		"program_start_date": startDate,
	})
	en.logger.Info("enrollment activated", "enrollment_id", e.ID, "start_date", startDate)
	return e, nil
}

// Cancel soft-cancels from any non-terminal state.
func (en *Engine) Cancel(ctx context.Context, enrollmentID, actor, reason string) (*Enrollment, error) {
	e, err := en.store.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.terminal() {
		return nil, ErrTerminalState
	}
	if err := en.store.UpdateStatus(ctx, enrollmentID, StatusCancelled, ""); err != nil {
		return nil, err
	}
	e.Status = StatusCancelled
	en.appendEvent(ctx, e.ID, EventCancelled, actor, map[string]any{"reason": reason})
	return e, nil
}

// Create registers a new enrollment and its audit event.
func (en *Engine) Create(ctx context.Context, clientID, startDate, endDate, actor string) (*Enrollment, error) {
	if _, err := parseDay(startDate); err != nil {
		return nil, fmt.Errorf("%w: start %q", ErrInvalidDate, startDate)
	}
	if _, err := parseDay(endDate); err != nil {
		return nil, fmt.Errorf("%w: end %q", ErrInvalidDate, endDate)
	}
	if endDate <= startDate {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidDate)
	}
	pending := startDate > formatDay(en.now())
	e, err := en.store.Create(ctx, clientID, startDate, endDate, pending)
	if err != nil {
		return nil, err
	}
	en.appendEvent(ctx, e.ID, EventCreated, actor, map[string]any{
		"client_id":          clientID,
		"program_start_date": startDate,
		"program_end_date":   endDate,
		"pending_start":      pending,
	})
	return e, nil
}

// Eligibility reports the remaining pause budget for the GET surface.
func (en *Engine) Eligibility(ctx context.Context, enrollmentID string) (*Eligibility, error) {
	e, err := en.store.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	el := &Eligibility{
		IsPaused:           e.IsPaused(),
		RemainingPauses:    en.limits.MaxPauseCount - e.PauseCount,
		RemainingPauseDays: en.limits.MaxPauseDaysTotal - e.TotalPauseDays,
		MaxPauseDaysSingle: en.limits.MaxPauseDaysSingle,
	}
	if el.RemainingPauses < 0 {
		el.RemainingPauses = 0
	}
	if el.RemainingPauseDays < 0 {
		el.RemainingPauseDays = 0
	}
	switch {
	case e.IsPaused():
		el.Reason = "enrollment is currently paused"
	case e.Status != StatusActive:
		el.Reason = "enrollment is not active"
	case el.RemainingPauses == 0:
		el.Reason = "maximum number of pauses reached"
	case el.RemainingPauseDays == 0:
		el.Reason = "pause day budget exhausted"
	default:
		el.CanPause = true
	}
	return el, nil
}

// pauseBookings marks in-window sessions paused and best-effort tears down
// their external resources. Failures here never fail the pause.
func (en *Engine) pauseBookings(ctx context.Context, enrollmentID, startDate, endDate string) int {
	if en.bookings == nil {
		return 0
	}
	affected, err := en.bookings.MarkPausedInWindow(ctx, enrollmentID, startDate, endDate)
	if err != nil {
		en.logger.Error("failed to pause sessions", "enrollment_id", enrollmentID, "error", err)
		return 0
	}
	for _, b := range affected {
		if b.CalendarEventID != "" && en.calendar != nil {
			if err := en.calendar.CancelEvent(ctx, b.CalendarEventID, true); err != nil {
				en.logger.Error("calendar cancellation failed",
					"booking_id", b.BookingID, "calendar_event_id", b.CalendarEventID, "error", err)
			}
		}
		if b.VideoBotID != "" && en.videobot != nil {
			if err := en.videobot.CancelBot(ctx, b.VideoBotID); err != nil {
				en.logger.Error("video bot teardown failed",
					"booking_id", b.BookingID, "video_bot_id", b.VideoBotID, "error", err)
			}
		}
	}
	return len(affected)
}

func (en *Engine) appendEvent(ctx context.Context, enrollmentID, eventType, actor string, payload any) {
	if en.events == nil {
		return
	}
	if err := en.events.Append(ctx, enrollmentID, eventType, actor, payload); err != nil {
		en.logger.Error("failed to append audit event",
			"enrollment_id", enrollmentID, "event_type", eventType, "error", err)
	}
}
