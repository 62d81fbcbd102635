package holds

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

// Handler exposes hold placement and release over HTTP.
type Handler struct {
	manager *Manager
	logger  *logging.Logger
}

// NewHandler creates a holds handler.
func NewHandler(manager *Manager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{manager: manager, logger: logger}
}

// PlaceHold handles POST /bookings/holds requests.
func (h *Handler) PlaceHold(w http.ResponseWriter, r *http.Request) {
	var req PlaceHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hold, err := h.manager.Place(r.Context(), req.ProviderID, req.Date, req.Time)
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotHeld), errors.Is(err, ErrSlotBooked):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("hold placement failed", "error", err, "provider_id", req.ProviderID)
			http.Error(w, "failed to place hold", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(hold)
}

// ReleaseHold handles DELETE /bookings/holds/{holdID} requests.
func (h *Handler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	holdID := chi.URLParam(r, "holdID")
	if holdID == "" {
		http.Error(w, "missing hold id", http.StatusBadRequest)
		return
	}

	if err := h.manager.Release(r.Context(), holdID); err != nil {
		if errors.Is(err, ErrHoldNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("hold release failed", "error", err, "hold_id", holdID)
		http.Error(w, "failed to release hold", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
