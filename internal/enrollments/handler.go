package enrollments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

// Handler exposes pause eligibility and timeline transitions over HTTP.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

// NewHandler creates an enrollments handler.
func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// pauseActionRequest is the body for POST /enrollments/{enrollmentID}/pause.
type pauseActionRequest struct {
	Action         string `json:"action"` // "pause" or "resume"
	PauseStartDate string `json:"pauseStartDate,omitempty"`
	PauseEndDate   string `json:"pauseEndDate,omitempty"`
	PauseReason    string `json:"pauseReason,omitempty"`
}

// GetEligibility handles GET /enrollments/{enrollmentID}/pause.
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "enrollmentID")
	if enrollmentID == "" {
		http.Error(w, "missing enrollment id", http.StatusBadRequest)
		return
	}

	el, err := h.engine.Eligibility(r.Context(), enrollmentID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("eligibility lookup failed", "error", err, "enrollment_id", enrollmentID)
		http.Error(w, "failed to check pause eligibility", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, el)
}

// PauseAction handles POST /enrollments/{enrollmentID}/pause, dispatching
// on the action field.
func (h *Handler) PauseAction(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "enrollmentID")
	if enrollmentID == "" {
		http.Error(w, "missing enrollment id", http.StatusBadRequest)
		return
	}

	var req pauseActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "pause":
		h.pause(w, r, enrollmentID, req)
	case "resume":
		h.resume(w, r, enrollmentID)
	default:
		http.Error(w, "action must be 'pause' or 'resume'", http.StatusBadRequest)
	}
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request, enrollmentID string, req pauseActionRequest) {
	result, err := h.engine.Pause(r.Context(), PauseRequest{
		EnrollmentID: enrollmentID,
		StartDate:    req.PauseStartDate,
		EndDate:      req.PauseEndDate,
		Reason:       req.PauseReason,
		Actor:        actorFrom(r),
	})
	if err != nil {
		h.writeTransitionError(w, err, enrollmentID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request, enrollmentID string) {
	result, err := h.engine.Resume(r.Context(), enrollmentID, actorFrom(r))
	if err != nil {
		h.writeTransitionError(w, err, enrollmentID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeTransitionError(w http.ResponseWriter, err error, enrollmentID string) {
	switch {
	case errors.Is(err, ErrEnrollmentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadyPaused), errors.Is(err, ErrNotPaused),
		errors.Is(err, ErrNotActive), errors.Is(err, ErrTerminalState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrPauseCountExceeded), errors.Is(err, ErrPauseBudgetExceeded),
		errors.Is(err, ErrPauseTooLong), errors.Is(err, ErrPauseTooShort),
		errors.Is(err, ErrInsufficientNotice), errors.Is(err, ErrInvalidPauseReason),
		errors.Is(err, ErrInvalidDate):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("enrollment transition failed", "error", err, "enrollment_id", enrollmentID)
		http.Error(w, "failed to update enrollment", http.StatusInternalServerError)
	}
}

// actorFrom pulls the authenticated subject set by the auth middleware,
// falling back to "system".
func actorFrom(r *http.Request) string {
	if v := r.Header.Get("X-Actor-ID"); v != "" {
		return v
	}
	return "system"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
