package enrollments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	enrollments map[string]*Enrollment
	failApply   bool
}

func newFakeStore(es ...*Enrollment) *fakeStore {
	s := &fakeStore{enrollments: make(map[string]*Enrollment)}
	for _, e := range es {
		s.enrollments[e.ID] = e
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id string) (*Enrollment, error) {
	e, ok := s.enrollments[id]
	if !ok {
		return nil, ErrEnrollmentNotFound
	}
	clone := *e
	return &clone, nil
}

func (s *fakeStore) Create(_ context.Context, clientID, startDate, endDate string, pending bool) (*Enrollment, error) {
	status := StatusActive
	if pending {
		status = StatusPendingStart
	}
	e := &Enrollment{
		ID:               "enr-" + clientID,
		ClientID:         clientID,
		Status:           status,
		ProgramStartDate: startDate,
		ProgramEndDate:   endDate,
		CreatedAt:        time.Now(),
	}
	s.enrollments[e.ID] = e
	return e, nil
}

func (s *fakeStore) ApplyPause(_ context.Context, e *Enrollment) error {
	if s.failApply {
		return errors.New("boom")
	}
	clone := *e
	s.enrollments[e.ID] = &clone
	return nil
}

func (s *fakeStore) ApplyResume(_ context.Context, e *Enrollment) error {
	if s.failApply {
		return errors.New("boom")
	}
	clone := *e
	s.enrollments[e.ID] = &clone
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id string, status Status, startDate string) error {
	e, ok := s.enrollments[id]
	if !ok {
		return ErrEnrollmentNotFound
	}
	e.Status = status
	if startDate != "" {
		e.ProgramStartDate = startDate
	}
	return nil
}

type recordedEvent struct {
	enrollmentID string
	eventType    string
	actor        string
}

type fakeEvents struct {
	events []recordedEvent
}

func (f *fakeEvents) Append(_ context.Context, enrollmentID, eventType, actor string, _ any) error {
	f.events = append(f.events, recordedEvent{enrollmentID, eventType, actor})
	return nil
}

func (f *fakeEvents) ofType(eventType string) int {
	n := 0
	for _, ev := range f.events {
		if ev.eventType == eventType {
			n++
		}
	}
	return n
}

type fakeLedger struct {
	affected    []*AffectedBooking
	reactivated int64
	pauseCalls  int
	resumeCalls int
}

func (f *fakeLedger) MarkPausedInWindow(_ context.Context, _, _, _ string) ([]*AffectedBooking, error) {
	f.pauseCalls++
	return f.affected, nil
}

func (f *fakeLedger) ReactivatePaused(_ context.Context, _, _ string) (int64, error) {
	f.resumeCalls++
	return f.reactivated, nil
}

type fakeCalendar struct {
	cancelled []string
	err       error
}

func (f *fakeCalendar) CancelEvent(_ context.Context, eventID string, _ bool) error {
	f.cancelled = append(f.cancelled, eventID)
	return f.err
}

type fakeVideoBot struct {
	cancelled []string
	err       error
}

func (f *fakeVideoBot) CancelBot(_ context.Context, botID string) error {
	f.cancelled = append(f.cancelled, botID)
	return f.err
}

// fixedNow is injected everywhere so notice and day math are deterministic.
var fixedNow = time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC)

func activeEnrollment() *Enrollment {
	return &Enrollment{
		ID:               "enr-1",
		ClientID:         "client-1",
		Status:           StatusActive,
		ProgramStartDate: "2026-08-01",
		ProgramEndDate:   "2026-11-01",
	}
}

func newTestEngine(t *testing.T, store Store, events *fakeEvents, ledger *fakeLedger, cal *fakeCalendar, bot *fakeVideoBot) *Engine {
	t.Helper()
	eng := NewEngine(store, events, ledger, cal, bot, DefaultLimits(), nil, nil)
	eng.now = func() time.Time { return fixedNow }
	return eng
}

func TestPauseExtendsEndDateByRequestedDays(t *testing.T) {
	store := newFakeStore(activeEnrollment())
	events := &fakeEvents{}
	ledger := &fakeLedger{affected: []*AffectedBooking{
		{BookingID: "b1", CalendarEventID: "cal-1", VideoBotID: "bot-1"},
		{BookingID: "b2", CalendarEventID: "cal-2"},
	}}
	cal := &fakeCalendar{}
	bot := &fakeVideoBot{}
	eng := newTestEngine(t, store, events, ledger, cal, bot)

	result, err := eng.Pause(context.Background(), PauseRequest{
		EnrollmentID: "enr-1",
		StartDate:    "2026-09-10",
		EndDate:      "2026-09-20",
		Reason:       "vacation",
		Actor:        "client-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 10, result.PauseDays)
	assert.Equal(t, 2, result.PausedSessions)
	assert.Equal(t, StatusPaused, result.Enrollment.Status)
	assert.Equal(t, "2026-11-11", result.Enrollment.ProgramEndDate)
	assert.Equal(t, "2026-11-01", result.Enrollment.OriginalEndDate)
	assert.Equal(t, 1, result.Enrollment.PauseCount)

	// External teardown used the stored handles.
	assert.Equal(t, []string{"cal-1", "cal-2"}, cal.cancelled)
	assert.Equal(t, []string{"bot-1"}, bot.cancelled)
	assert.Equal(t, 1, events.ofType(EventPaused))
}

func TestPauseExternalTeardownFailureIsNotFatal(t *testing.T) {
	store := newFakeStore(activeEnrollment())
	ledger := &fakeLedger{affected: []*AffectedBooking{
		{BookingID: "b1", CalendarEventID: "cal-1", VideoBotID: "bot-1"},
	}}
	cal := &fakeCalendar{err: errors.New("calendar down")}
	bot := &fakeVideoBot{err: errors.New("bot api down")}
	eng := newTestEngine(t, store, &fakeEvents{}, ledger, cal, bot)

	result, err := eng.Pause(context.Background(), PauseRequest{
		EnrollmentID: "enr-1",
		StartDate:    "2026-09-10",
		EndDate:      "2026-09-15",
		Reason:       "medical",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, result.Enrollment.Status)

	stored, err := store.Get(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, stored.Status)
}

func TestPauseValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Enrollment)
		req     PauseRequest
		wantErr error
	}{
		{
			name:    "already paused",
			mutate:  func(e *Enrollment) { e.Status = StatusPaused },
			req:     PauseRequest{StartDate: "2026-09-10", EndDate: "2026-09-15", Reason: "vacation"},
			wantErr: ErrAlreadyPaused,
		},
		{
			name:    "cancelled enrollment",
			mutate:  func(e *Enrollment) { e.Status = StatusCancelled },
			req:     PauseRequest{StartDate: "2026-09-10", EndDate: "2026-09-15", Reason: "vacation"},
			wantErr: ErrTerminalState,
		},
		{
			name:    "pending start",
			mutate:  func(e *Enrollment) { e.Status = StatusPendingStart },
			req:     PauseRequest{StartDate: "2026-09-10", EndDate: "2026-09-15", Reason: "vacation"},
			wantErr: ErrNotActive,
		},
		{
			name:    "pause count exhausted",
			mutate:  func(e *Enrollment) { e.PauseCount = 3 },
			req:     PauseRequest{StartDate: "2026-09-10", EndDate: "2026-09-15", Reason: "vacation"},
			wantErr: ErrPauseCountExceeded,
		},
		{
			name:    "unknown reason",
			mutate:  func(e *Enrollment) {},
			req:     PauseRequest{StartDate: "2026-09-10", EndDate: "2026-09-15", Reason: "sabbatical"},
			wantErr: ErrInvalidPauseReason,
		},
		{
			name:    "insufficient notice",
			mutate:  func(e *Enrollment) {},
			req:     PauseRequest{StartDate: "2026-09-04", EndDate: "2026-09-10", Reason: "vacation"},
			wantErr: ErrInsufficientNotice,
		},
		{
			name:    "zero-day pause",
			mutate:  func(e *Enrollment) {},
			req:     PauseRequest{StartDate: "2026-09-10", EndDate: "2026-09-10", Reason: "vacation"},
			wantErr: ErrPauseTooShort,
		},
		{
			name:    "single pause over cap",
			mutate:  func(e *Enrollment) {},
			req:     PauseRequest{StartDate: "2026-09-10", EndDate: "2026-10-15", Reason: "vacation"},
			wantErr: ErrPauseTooLong,
		},
		{
			name:    "cumulative budget exhausted",
			mutate:  func(e *Enrollment) { e.TotalPauseDays = 55 },
			req:     PauseRequest{StartDate: "2026-09-10", EndDate: "2026-09-20", Reason: "vacation"},
			wantErr: ErrPauseBudgetExceeded,
		},
		{
			name:    "malformed start date",
			mutate:  func(e *Enrollment) {},
			req:     PauseRequest{StartDate: "09/10/2026", EndDate: "2026-09-15", Reason: "vacation"},
			wantErr: ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := activeEnrollment()
			tt.mutate(e)
			store := newFakeStore(e)
			events := &fakeEvents{}
			eng := newTestEngine(t, store, events, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

			req := tt.req
			req.EnrollmentID = "enr-1"
			_, err := eng.Pause(context.Background(), req)
			require.ErrorIs(t, err, tt.wantErr)

			// Rejected pauses must not mutate anything.
			stored, getErr := store.Get(context.Background(), "enr-1")
			require.NoError(t, getErr)
			assert.Equal(t, e.Status, stored.Status)
			assert.Empty(t, events.events)
		})
	}
}

func TestResumeChargesOnlyDaysActuallyMissed(t *testing.T) {
	// Paused Sep 1 for 10 days; client returns Sep 4, three days in.
	e := activeEnrollment()
	e.Status = StatusPaused
	e.OriginalEndDate = "2026-11-01"
	e.ProgramEndDate = "2026-11-11" // extended by the requested 10
	e.PauseStartDate = "2026-09-01"
	e.PauseEndDate = "2026-09-11"
	e.PauseReason = "vacation"
	e.PauseCount = 1

	store := newFakeStore(e)
	events := &fakeEvents{}
	ledger := &fakeLedger{reactivated: 4}
	eng := newTestEngine(t, store, events, ledger, &fakeCalendar{}, &fakeVideoBot{})

	result, err := eng.Resume(context.Background(), "enr-1", "client-1")
	require.NoError(t, err)

	assert.True(t, result.Resumed)
	assert.Equal(t, 3, result.ActualPauseDays)
	assert.Equal(t, int64(4), result.ResumedSessions)
	assert.Equal(t, StatusActive, result.Enrollment.Status)
	assert.Equal(t, "2026-11-04", result.Enrollment.ProgramEndDate)
	assert.Equal(t, 3, result.Enrollment.TotalPauseDays)
	assert.Empty(t, result.Enrollment.PauseStartDate)
	assert.Equal(t, 1, events.ofType(EventResumed))
	assert.Equal(t, 1, ledger.resumeCalls)
}

func TestResumeAlreadyActiveIsReportedNoOp(t *testing.T) {
	store := newFakeStore(activeEnrollment())
	events := &fakeEvents{}
	ledger := &fakeLedger{}
	eng := newTestEngine(t, store, events, ledger, &fakeCalendar{}, &fakeVideoBot{})

	result, err := eng.Resume(context.Background(), "enr-1", "client-1")
	require.NoError(t, err)

	assert.False(t, result.Resumed)
	assert.Zero(t, result.ActualPauseDays)
	assert.Empty(t, events.events)
	assert.Zero(t, ledger.resumeCalls)
}

func TestResumeFromTerminalStateFails(t *testing.T) {
	e := activeEnrollment()
	e.Status = StatusCancelled
	eng := newTestEngine(t, newFakeStore(e), &fakeEvents{}, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

	_, err := eng.Resume(context.Background(), "enr-1", "client-1")
	require.ErrorIs(t, err, ErrNotPaused)
}

func TestRepeatedPauseCyclesNeverCompound(t *testing.T) {
	// Cycle 1: paused Aug 20, resumed after 5 actual days (total 5).
	// Cycle 2: paused Sep 1, resumed Sep 4 (3 more actual days).
	// End date must be original + 8, not original + anything requested.
	e := activeEnrollment()
	e.Status = StatusPaused
	e.OriginalEndDate = "2026-11-01"
	e.ProgramEndDate = "2026-11-26" // whatever the second request pushed it to
	e.PauseStartDate = "2026-09-01"
	e.PauseEndDate = "2026-09-21"
	e.PauseReason = "personal"
	e.TotalPauseDays = 5
	e.PauseCount = 2

	store := newFakeStore(e)
	eng := newTestEngine(t, store, &fakeEvents{}, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

	result, err := eng.Resume(context.Background(), "enr-1", "client-1")
	require.NoError(t, err)

	assert.Equal(t, 3, result.ActualPauseDays)
	assert.Equal(t, 8, result.Enrollment.TotalPauseDays)
	assert.Equal(t, "2026-11-09", result.Enrollment.ProgramEndDate)
}

func TestResumeBeforePauseStartChargesZeroDays(t *testing.T) {
	e := activeEnrollment()
	e.Status = StatusPaused
	e.OriginalEndDate = "2026-11-01"
	e.ProgramEndDate = "2026-11-11"
	e.PauseStartDate = "2026-09-10" // scheduled ahead, cancelled before it began
	e.PauseEndDate = "2026-09-20"
	e.PauseCount = 1

	eng := newTestEngine(t, newFakeStore(e), &fakeEvents{}, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

	result, err := eng.Resume(context.Background(), "enr-1", "client-1")
	require.NoError(t, err)

	assert.Zero(t, result.ActualPauseDays)
	assert.Equal(t, "2026-11-01", result.Enrollment.ProgramEndDate)
	assert.Zero(t, result.Enrollment.TotalPauseDays)
}

func TestPauseCountChargedAcrossCycles(t *testing.T) {
	e := activeEnrollment()
	e.PauseCount = 2
	store := newFakeStore(e)
	eng := newTestEngine(t, store, &fakeEvents{}, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

	// Third pause is the last one allowed.
	result, err := eng.Pause(context.Background(), PauseRequest{
		EnrollmentID: "enr-1",
		StartDate:    "2026-09-10",
		EndDate:      "2026-09-12",
		Reason:       "other",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Enrollment.PauseCount)

	// Simulate a resume, then a fourth attempt: rejected on count.
	stored, _ := store.Get(context.Background(), "enr-1")
	stored.Status = StatusActive
	store.enrollments["enr-1"] = stored

	_, err = eng.Pause(context.Background(), PauseRequest{
		EnrollmentID: "enr-1",
		StartDate:    "2026-09-20",
		EndDate:      "2026-09-22",
		Reason:       "other",
	})
	require.ErrorIs(t, err, ErrPauseCountExceeded)
	assert.Contains(t, err.Error(), "maximum 3")
}

func TestActivateDelayedStart(t *testing.T) {
	t.Run("due today activates", func(t *testing.T) {
		e := activeEnrollment()
		e.Status = StatusPendingStart
		e.ProgramStartDate = "2026-09-04"
		store := newFakeStore(e)
		events := &fakeEvents{}
		eng := newTestEngine(t, store, events, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

		got, err := eng.ActivateDelayedStart(context.Background(), "enr-1", "scheduler")
		require.NoError(t, err)
		assert.Equal(t, StatusActive, got.Status)
		assert.Equal(t, 1, events.ofType(EventStarted))
	})

	t.Run("not yet due", func(t *testing.T) {
		e := activeEnrollment()
		e.Status = StatusPendingStart
		e.ProgramStartDate = "2026-09-10"
		eng := newTestEngine(t, newFakeStore(e), &fakeEvents{}, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

		_, err := eng.ActivateDelayedStart(context.Background(), "enr-1", "scheduler")
		require.ErrorIs(t, err, ErrStartNotDue)
	})

	t.Run("already active is a no-op", func(t *testing.T) {
		events := &fakeEvents{}
		eng := newTestEngine(t, newFakeStore(activeEnrollment()), events, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

		got, err := eng.ActivateDelayedStart(context.Background(), "enr-1", "scheduler")
		require.NoError(t, err)
		assert.Equal(t, StatusActive, got.Status)
		assert.Empty(t, events.events)
	})
}

func TestCancelFromTerminalStateFails(t *testing.T) {
	e := activeEnrollment()
	e.Status = StatusCompleted
	eng := newTestEngine(t, newFakeStore(e), &fakeEvents{}, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

	_, err := eng.Cancel(context.Background(), "enr-1", "admin", "duplicate")
	require.ErrorIs(t, err, ErrTerminalState)
}

func TestCreateDelayedStartIsPending(t *testing.T) {
	store := newFakeStore()
	events := &fakeEvents{}
	eng := newTestEngine(t, store, events, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

	got, err := eng.Create(context.Background(), "client-9", "2026-10-01", "2026-12-31", "admin")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingStart, got.Status)
	assert.Equal(t, 1, events.ofType(EventCreated))

	_, err = eng.Create(context.Background(), "client-10", "2026-12-31", "2026-10-01", "admin")
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestEligibility(t *testing.T) {
	t.Run("active with budget", func(t *testing.T) {
		e := activeEnrollment()
		e.PauseCount = 1
		e.TotalPauseDays = 10
		eng := newTestEngine(t, newFakeStore(e), &fakeEvents{}, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

		el, err := eng.Eligibility(context.Background(), "enr-1")
		require.NoError(t, err)
		assert.True(t, el.CanPause)
		assert.Equal(t, 2, el.RemainingPauses)
		assert.Equal(t, 50, el.RemainingPauseDays)
	})

	t.Run("currently paused", func(t *testing.T) {
		e := activeEnrollment()
		e.Status = StatusPaused
		eng := newTestEngine(t, newFakeStore(e), &fakeEvents{}, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

		el, err := eng.Eligibility(context.Background(), "enr-1")
		require.NoError(t, err)
		assert.False(t, el.CanPause)
		assert.True(t, el.IsPaused)
	})

	t.Run("count exhausted", func(t *testing.T) {
		e := activeEnrollment()
		e.PauseCount = 3
		eng := newTestEngine(t, newFakeStore(e), &fakeEvents{}, &fakeLedger{}, &fakeCalendar{}, &fakeVideoBot{})

		el, err := eng.Eligibility(context.Background(), "enr-1")
		require.NoError(t, err)
		assert.False(t, el.CanPause)
		assert.Zero(t, el.RemainingPauses)
	})
}
