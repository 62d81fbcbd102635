package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/coachpoint/scheduling-platform/internal/availability"
	"github.com/coachpoint/scheduling-platform/internal/bookings"
	"github.com/coachpoint/scheduling-platform/internal/enrollments"
	"github.com/coachpoint/scheduling-platform/internal/holds"
	httpmiddleware "github.com/coachpoint/scheduling-platform/internal/http/middleware"
	"github.com/coachpoint/scheduling-platform/internal/orchestrator"
	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AvailabilityHandler *availability.Handler
	HoldsHandler        *holds.Handler
	BookingsHandler     *bookings.Handler
	EnrollmentsHandler  *enrollments.Handler
	DispatchHandler     *orchestrator.Handler
	RateLimiter         *httpmiddleware.RedisRateLimiter
	AuthSecret          string
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health checks, metrics, slot discovery)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.AvailabilityHandler != nil {
			public.Group(func(slots chi.Router) {
				if cfg.RateLimiter != nil {
					slots.Use(cfg.RateLimiter.RateLimit)
				}
				slots.Get("/availability/slots", cfg.AvailabilityHandler.GetSlots)
			})
		}
	})

	// Authenticated booking flow: any signed-in role may hold and confirm.
	if cfg.AuthSecret != "" {
		r.Group(func(authed chi.Router) {
			authed.Use(httpmiddleware.AuthJWT(cfg.AuthSecret))
			if cfg.HoldsHandler != nil {
				authed.Post("/bookings/holds", cfg.HoldsHandler.PlaceHold)
				authed.Delete("/bookings/holds/{holdID}", cfg.HoldsHandler.ReleaseHold)
			}
			if cfg.BookingsHandler != nil {
				authed.Post("/bookings/confirm", cfg.BookingsHandler.Confirm)
			}
			if cfg.EnrollmentsHandler != nil {
				authed.Route("/enrollments/{enrollmentID}", func(er chi.Router) {
					er.Get("/pause", cfg.EnrollmentsHandler.GetEligibility)
					er.Post("/pause", cfg.EnrollmentsHandler.PauseAction)
				})
			}
		})

		// Event dispatch is provider-or-admin; the dispatcher enforces
		// nothing further, so the role gate lives here.
		if cfg.DispatchHandler != nil {
			r.Group(func(ops chi.Router) {
				ops.Use(httpmiddleware.AuthJWT(cfg.AuthSecret, "provider"))
				ops.Post("/events/dispatch", cfg.DispatchHandler.Dispatch)
			})
		}
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
