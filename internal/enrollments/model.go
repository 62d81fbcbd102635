package enrollments

import (
	"time"
)

// Status is an enrollment lifecycle state.
type Status string

const (
	StatusPendingStart Status = "pending_start"
	StatusActive       Status = "active"
	StatusPaused       Status = "paused"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
)

// Enrollment is a client's program instance. Pause bookkeeping keeps two
// end dates: ProgramEndDate moves when a pause is requested, while
// OriginalEndDate stays at the first-ever end date so resumes can charge
// the program for days actually missed instead of days planned.
type Enrollment struct {
	ID               string    `json:"id"`
	ClientID         string    `json:"client_id"`
	Status           Status    `json:"status"`
	ProgramStartDate string    `json:"program_start_date,omitempty"` // YYYY-MM-DD
	ProgramEndDate   string    `json:"program_end_date"`
	OriginalEndDate  string    `json:"original_end_date,omitempty"`
	PauseStartDate   string    `json:"pause_start_date,omitempty"`
	PauseEndDate     string    `json:"pause_end_date,omitempty"`
	PauseReason      string    `json:"pause_reason,omitempty"`
	TotalPauseDays   int       `json:"total_pause_days"`
	PauseCount       int       `json:"pause_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsPaused reports whether the enrollment is currently paused.
func (e *Enrollment) IsPaused() bool {
	return e.Status == StatusPaused
}

// terminal reports whether no further transitions are allowed.
func (e *Enrollment) terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusCancelled
}

// Pause reasons accepted by the timeline engine.
var pauseReasons = map[string]struct{}{
	"vacation":  {},
	"medical":   {},
	"financial": {},
	"personal":  {},
	"other":     {},
}

// ValidPauseReason reports whether reason is in the enumerated set.
func ValidPauseReason(reason string) bool {
	_, ok := pauseReasons[reason]
	return ok
}

// Limits bound the pause budget.
type Limits struct {
	MaxPauseCount      int
	MaxPauseDaysSingle int
	MaxPauseDaysTotal  int
	MinNoticeHours     int
}

// DefaultLimits returns the production pause budget.
func DefaultLimits() Limits {
	return Limits{
		MaxPauseCount:      3,
		MaxPauseDaysSingle: 30,
		MaxPauseDaysTotal:  60,
		MinNoticeHours:     24,
	}
}

// PauseRequest asks to pause an enrollment over [StartDate, EndDate].
type PauseRequest struct {
	EnrollmentID string
	StartDate    string // YYYY-MM-DD
	EndDate      string
	Reason       string
	Actor        string
}

// PauseResult reports a completed pause.
type PauseResult struct {
	Enrollment     *Enrollment `json:"enrollment"`
	PauseDays      int         `json:"pause_days"`
	PausedSessions int         `json:"paused_sessions"`
}

// ResumeResult reports a resume. Resumed is false for the idempotent
// no-op case of resuming an already-active enrollment.
type ResumeResult struct {
	Enrollment        *Enrollment `json:"enrollment"`
	Resumed           bool        `json:"resumed"`
	ActualPauseDays   int         `json:"actual_pause_days"`
	ResumedSessions   int64       `json:"resumed_sessions"`
}

// Eligibility describes the remaining pause budget for the GET surface.
type Eligibility struct {
	CanPause           bool   `json:"can_pause"`
	IsPaused           bool   `json:"is_paused"`
	Reason             string `json:"reason,omitempty"`
	RemainingPauses    int    `json:"remaining_pauses"`
	RemainingPauseDays int    `json:"remaining_pause_days"`
	MaxPauseDaysSingle int    `json:"max_pause_days_single"`
}

const dayLayout = "2006-01-02"

func parseDay(s string) (time.Time, error) {
	return time.Parse(dayLayout, s)
}

func formatDay(t time.Time) string {
	return t.Format(dayLayout)
}

// daysBetween returns whole days from a to b, negative when b precedes a.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func addDays(day string, days int) (string, error) {
	t, err := parseDay(day)
	if err != nil {
		return "", err
	}
	return formatDay(t.AddDate(0, 0, days)), nil
}
