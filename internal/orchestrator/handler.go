package orchestrator

import (
	"encoding/json"
	"net/http"
	"strings"

	httpmiddleware "github.com/coachpoint/scheduling-platform/internal/http/middleware"
	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

// Handler exposes event dispatch over HTTP.
type Handler struct {
	dispatcher *Dispatcher
	logger     *logging.Logger
}

// NewHandler creates a dispatch handler.
func NewHandler(dispatcher *Dispatcher, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{dispatcher: dispatcher, logger: logger}
}

type dispatchRequest struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatch handles POST /events/dispatch requests. The HTTP status mirrors
// the result code: applied/noop 200, rejected 422, unknown event 400,
// infrastructure failure 500.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Event == "" {
		http.Error(w, "event is required", http.StatusBadRequest)
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage(`{}`)
	}

	// Enrollment timelines cut across providers, so only admins may
	// dispatch enrollment.* events. Provider-scoped events pass the
	// route-level role gate.
	if strings.HasPrefix(req.Event, "enrollment.") {
		if claims, ok := httpmiddleware.ClaimsFromContext(r.Context()); ok && claims.Role != "admin" {
			http.Error(w, "enrollment events require admin role", http.StatusForbidden)
			return
		}
	}

	result := h.dispatcher.Dispatch(r.Context(), req.Event, req.Payload)

	status := http.StatusOK
	switch result.Code {
	case CodeRejected:
		status = http.StatusUnprocessableEntity
		if !AllowedEvent(req.Event) {
			status = http.StatusBadRequest
		}
	case CodeFailed:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}
