package availability

// Session types understood by the scheduler.
const (
	SessionCoaching = "coaching"
	SessionIntake   = "intake_call"
	SessionReview   = "review"
)

const (
	durationChild = 30
	durationTeen  = 45
	durationAdult = 60

	durationIntake = 20
	durationReview = 45
)

// ResolveDuration returns the session length in minutes. Coaching sessions
// are sized by client age bracket; other session types are fixed. A missing
// age defaults to the adult bracket.
func ResolveDuration(sessionType string, clientAge *int) (int, error) {
	switch sessionType {
	case SessionCoaching:
		if clientAge == nil {
			return durationAdult, nil
		}
		switch {
		case *clientAge < 13:
			return durationChild, nil
		case *clientAge < 18:
			return durationTeen, nil
		default:
			return durationAdult, nil
		}
	case SessionIntake:
		return durationIntake, nil
	case SessionReview:
		return durationReview, nil
	default:
		return 0, ErrUnknownSessionType
	}
}
