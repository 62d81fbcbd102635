package bookings

import "time"

// Status is a booking lifecycle state. Rows are never deleted; the status
// column is the audit trail.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusPaused      Status = "paused"
	StatusRescheduled Status = "rescheduled"
	StatusNoShow      Status = "no_show"
)

// activeStatuses are the states that occupy provider time.
var activeStatuses = []string{string(StatusScheduled), string(StatusConfirmed)}

// Booking is a confirmed occupancy of provider time.
type Booking struct {
	ID              string    `json:"id"`
	ProviderID      string    `json:"provider_id"`
	ClientID        string    `json:"client_id"`
	EnrollmentID    string    `json:"enrollment_id,omitempty"`
	Date            string    `json:"date"` // YYYY-MM-DD
	Time            string    `json:"time"` // HH:MM
	DurationMinutes int       `json:"duration_minutes"`
	SessionType     string    `json:"session_type"`
	Status          Status    `json:"status"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	VideoBotID      string    `json:"video_bot_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ConfirmRequest is the request body for confirming a held slot.
type ConfirmRequest struct {
	HoldID          string `json:"hold_id"`
	ClientID        string `json:"client_id"`
	EnrollmentID    string `json:"enrollment_id,omitempty"`
	SessionType     string `json:"session_type"`
	DurationMinutes int    `json:"duration_minutes"`
	CalendarEventID string `json:"calendar_event_id,omitempty"`
	VideoBotID      string `json:"video_bot_id,omitempty"`
}

// Validate checks the request shape.
func (r *ConfirmRequest) Validate() error {
	if r.HoldID == "" {
		return ErrMissingHold
	}
	if r.ClientID == "" {
		return ErrMissingClient
	}
	if r.SessionType == "" {
		return ErrMissingSessionType
	}
	if r.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	return nil
}
