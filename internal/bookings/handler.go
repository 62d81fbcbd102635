package bookings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

// Handler exposes booking confirmation over HTTP.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// Confirm handles POST /bookings/confirm requests. The hold named in the
// request is consumed and the ledger row written atomically.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	booking, err := h.repo.ConfirmFromHold(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingHold), errors.Is(err, ErrMissingClient),
			errors.Is(err, ErrMissingSessionType), errors.Is(err, ErrInvalidDuration):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrHoldGone):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("booking confirmation failed", "error", err, "hold_id", req.HoldID)
			http.Error(w, "failed to confirm booking", http.StatusInternalServerError)
		}
		return
	}

	h.logger.Info("booking confirmed",
		"booking_id", booking.ID,
		"provider_id", booking.ProviderID,
		"client_id", booking.ClientID,
		"date", booking.Date,
		"time", booking.Time,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(booking)
}
