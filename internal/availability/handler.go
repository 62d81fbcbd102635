package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

// Handler serves the slot query surface.
type Handler struct {
	agg    *Aggregator
	logger *logging.Logger
}

// NewHandler creates an availability handler.
func NewHandler(agg *Aggregator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{agg: agg, logger: logger}
}

// GetSlots handles GET /availability/slots requests.
func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	q := SlotQuery{
		ProviderID:  r.URL.Query().Get("providerId"),
		SessionType: r.URL.Query().Get("sessionType"),
		Days:        7,
	}
	if q.SessionType == "" {
		q.SessionType = SessionCoaching
	}
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			http.Error(w, "days must be an integer", http.StatusBadRequest)
			return
		}
		q.Days = days
	}
	if ageStr := r.URL.Query().Get("clientAge"); ageStr != "" {
		age, err := strconv.Atoi(ageStr)
		if err != nil || age < 0 {
			http.Error(w, "clientAge must be a non-negative integer", http.StatusBadRequest)
			return
		}
		q.ClientAge = &age
	}

	resp, err := h.agg.GetSlots(r.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownSessionType), errors.Is(err, ErrInvalidHorizon):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrProviderNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.logger.Error("slot query failed", "error", err, "provider_id", q.ProviderID)
			http.Error(w, "failed to compute availability", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
