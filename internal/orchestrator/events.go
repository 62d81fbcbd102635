package orchestrator

// Lifecycle events the dispatcher accepts. Anything outside this list is
// rejected before any side effect runs.
const (
	EventEnrollmentCreated     = "enrollment.created"
	EventEnrollmentPaused      = "enrollment.paused"
	EventEnrollmentResumed     = "enrollment.resumed"
	EventDelayedStartActivated = "enrollment.delayed_start_activated"
	EventProviderUnavailable   = "provider.unavailable"
	EventProviderAvailable     = "provider.available"
	EventProviderExited        = "provider.exited"
	EventSessionRescheduled    = "session.rescheduled"
	EventSessionCancelled      = "session.cancelled"
	EventSessionCompleted      = "session.completed"
	EventSessionNoShow         = "session.no_show"
)

var allowedEvents = map[string]struct{}{
	EventEnrollmentCreated:     {},
	EventEnrollmentPaused:      {},
	EventEnrollmentResumed:     {},
	EventDelayedStartActivated: {},
	EventProviderUnavailable:   {},
	EventProviderAvailable:     {},
	EventProviderExited:        {},
	EventSessionRescheduled:    {},
	EventSessionCancelled:      {},
	EventSessionCompleted:      {},
	EventSessionNoShow:         {},
}

// AllowedEvent reports whether the dispatcher handles this event type.
func AllowedEvent(event string) bool {
	_, ok := allowedEvents[event]
	return ok
}

// Outcome codes carried on Result.Code.
const (
	CodeApplied  = "applied"
	CodeNoop     = "noop"
	CodeRejected = "rejected"
	CodeFailed   = "failed"
)

// Result is the dispatch outcome. Rejected means the event was understood
// but refused by a business rule; failed means infrastructure broke.
type Result struct {
	Success bool           `json:"success"`
	Event   string         `json:"event"`
	Code    string         `json:"code"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func applied(event string, data map[string]any) Result {
	return Result{Success: true, Event: event, Code: CodeApplied, Data: data}
}

func noop(event string, data map[string]any) Result {
	return Result{Success: true, Event: event, Code: CodeNoop, Data: data}
}

func rejected(event string, err error) Result {
	return Result{Event: event, Code: CodeRejected, Error: err.Error()}
}

func failed(event string, err error) Result {
	return Result{Event: event, Code: CodeFailed, Error: err.Error()}
}
