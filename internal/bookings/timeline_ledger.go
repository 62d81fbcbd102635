package bookings

import (
	"context"

	"github.com/coachpoint/scheduling-platform/internal/enrollments"
)

// TimelineLedger adapts the repository to the narrow slice the enrollment
// timeline engine needs, translating ledger rows into the external-resource
// handles the engine tears down.
type TimelineLedger struct {
	repo *Repository
}

// NewTimelineLedger wraps the repository for the timeline engine.
func NewTimelineLedger(repo *Repository) *TimelineLedger {
	return &TimelineLedger{repo: repo}
}

// MarkPausedInWindow implements enrollments.BookingLedger.
func (l *TimelineLedger) MarkPausedInWindow(ctx context.Context, enrollmentID, startDate, endDate string) ([]*enrollments.AffectedBooking, error) {
	paused, err := l.repo.MarkPausedInWindow(ctx, enrollmentID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	affected := make([]*enrollments.AffectedBooking, 0, len(paused))
	for _, b := range paused {
		affected = append(affected, &enrollments.AffectedBooking{
			BookingID:       b.ID,
			CalendarEventID: b.CalendarEventID,
			VideoBotID:      b.VideoBotID,
		})
	}
	return affected, nil
}

// ReactivatePaused implements enrollments.BookingLedger.
func (l *TimelineLedger) ReactivatePaused(ctx context.Context, enrollmentID, fromDate string) (int64, error) {
	return l.repo.ReactivatePaused(ctx, enrollmentID, fromDate)
}
