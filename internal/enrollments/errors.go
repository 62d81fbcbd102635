package enrollments

import "errors"

var (
	// ErrEnrollmentNotFound is returned when an enrollment id is unknown
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrNotActive is returned when pausing an enrollment that is not active
	ErrNotActive = errors.New("enrollment is not active")

	// ErrAlreadyPaused is returned when pausing an already-paused enrollment
	ErrAlreadyPaused = errors.New("enrollment is already paused")

	// ErrNotPaused is returned when resuming from a terminal state
	ErrNotPaused = errors.New("enrollment is not paused")

	// ErrPauseCountExceeded is returned when the pause count budget is spent
	ErrPauseCountExceeded = errors.New("maximum number of pauses reached")

	// ErrPauseBudgetExceeded is returned when the cumulative day budget is spent
	ErrPauseBudgetExceeded = errors.New("not enough pause days remaining")

	// ErrPauseTooLong is returned when a single pause exceeds its cap
	ErrPauseTooLong = errors.New("pause exceeds maximum single duration")

	// ErrPauseTooShort is returned for a pause of less than one day
	ErrPauseTooShort = errors.New("pause must be at least one day")

	// ErrInsufficientNotice is returned when the pause starts too soon
	ErrInsufficientNotice = errors.New("pause start does not meet minimum notice")

	// ErrInvalidPauseReason is returned for a reason outside the enumerated set
	ErrInvalidPauseReason = errors.New("pause reason not recognized")

	// ErrInvalidDate is returned for malformed or inverted dates
	ErrInvalidDate = errors.New("invalid date")

	// ErrStartNotDue is returned when activating a delayed start early
	ErrStartNotDue = errors.New("program start date has not arrived")

	// ErrTerminalState is returned when mutating a completed or cancelled enrollment
	ErrTerminalState = errors.New("enrollment is in a terminal state")
)
