package enrollments

import "context"

// Store persists enrollments. The timeline engine is the only writer.
type Store interface {
	Get(ctx context.Context, enrollmentID string) (*Enrollment, error)
	Create(ctx context.Context, clientID, startDate, endDate string, pending bool) (*Enrollment, error)
	ApplyPause(ctx context.Context, e *Enrollment) error
	ApplyResume(ctx context.Context, e *Enrollment) error
	UpdateStatus(ctx context.Context, enrollmentID string, status Status, programStartDate string) error
}

// EventAppender records immutable audit events for lifecycle transitions.
type EventAppender interface {
	Append(ctx context.Context, enrollmentID, eventType, actor string, payload any) error
}

// BookingLedger is the slice of the booking ledger the engine touches when
// a pause window opens or closes.
type BookingLedger interface {
	MarkPausedInWindow(ctx context.Context, enrollmentID, startDate, endDate string) ([]*AffectedBooking, error)
	ReactivatePaused(ctx context.Context, enrollmentID, fromDate string) (int64, error)
}

// AffectedBooking carries the external-resource handles of a paused session.
type AffectedBooking struct {
	BookingID       string
	CalendarEventID string
	VideoBotID      string
}

// CalendarClient cancels provider calendar events, best effort.
type CalendarClient interface {
	CancelEvent(ctx context.Context, eventID string, notify bool) error
}

// VideoBotClient tears down recording bots, best effort.
type VideoBotClient interface {
	CancelBot(ctx context.Context, botID string) error
}
