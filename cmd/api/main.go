package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/coachpoint/scheduling-platform/internal/api/router"
	"github.com/coachpoint/scheduling-platform/internal/availability"
	"github.com/coachpoint/scheduling-platform/internal/bookings"
	"github.com/coachpoint/scheduling-platform/internal/collab/calendar"
	"github.com/coachpoint/scheduling-platform/internal/collab/videobot"
	appconfig "github.com/coachpoint/scheduling-platform/internal/config"
	"github.com/coachpoint/scheduling-platform/internal/enrollments"
	"github.com/coachpoint/scheduling-platform/internal/holds"
	httpmiddleware "github.com/coachpoint/scheduling-platform/internal/http/middleware"
	"github.com/coachpoint/scheduling-platform/internal/observability/metrics"
	"github.com/coachpoint/scheduling-platform/internal/orchestrator"
	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)

	// External collaborators
	calendarClient := calendar.NewClient(cfg.CalendarBaseURL, cfg.CalendarAPIKey, logger)
	videoBotClient := videobot.NewClient(cfg.VideoBotBaseURL, cfg.VideoBotAPIKey, logger)

	// Stores
	ruleRepo := availability.NewPostgresRuleRepository(pool)
	providerDir := availability.NewPostgresProviderDirectory(pool)
	bookingRepo := bookings.NewRepository(pool)
	holdManager := holds.NewManager(pool, cfg.HoldTTL, schedulingMetrics, logger)
	enrollmentStore := enrollments.NewPostgresStore(pool)
	eventStore := enrollments.NewEventStore(pool)

	// Slot discovery
	generator := availability.NewGenerator(ruleRepo, bookingRepo, holdManager, availability.GeneratorConfig{
		GridMinutes:     cfg.SlotGridMinutes,
		MaxHorizonDays:  cfg.SlotMaxHorizonDays,
		LeadTimeMinutes: cfg.SlotLeadTimeMinutes,
		DefaultDayStart: cfg.DefaultDayStart,
		DefaultDayEnd:   cfg.DefaultDayEnd,
		WeeklyDayOff:    cfg.WeeklyDayOff,
	}, logger)
	aggregator := availability.NewAggregator(generator, providerDir, cfg.SlotMaxProviders, schedulingMetrics, logger)

	// Enrollment timeline engine
	timelineEngine := enrollments.NewEngine(
		enrollmentStore,
		eventStore,
		bookings.NewTimelineLedger(bookingRepo),
		calendarClient,
		videoBotClient,
		enrollments.Limits{
			MaxPauseCount:      cfg.MaxPauseCount,
			MaxPauseDaysSingle: cfg.MaxPauseDaysSingle,
			MaxPauseDaysTotal:  cfg.MaxPauseDaysTotal,
			MinNoticeHours:     cfg.PauseMinNoticeHours,
		},
		schedulingMetrics,
		logger,
	)

	// Orchestrator
	dispatcher := orchestrator.NewDispatcher(
		timelineEngine, bookingRepo, ruleRepo, providerDir,
		calendarClient, videoBotClient, schedulingMetrics, logger,
	)

	rateLimiter := httpmiddleware.NewRedisRateLimiter(redisClient, cfg.RateLimitPerMinute, time.Minute, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AvailabilityHandler: availability.NewHandler(aggregator, logger),
		HoldsHandler:        holds.NewHandler(holdManager, logger),
		BookingsHandler:     bookings.NewHandler(bookingRepo, logger),
		EnrollmentsHandler:  enrollments.NewHandler(timelineEngine, logger),
		DispatchHandler:     orchestrator.NewHandler(dispatcher, logger),
		RateLimiter:         rateLimiter,
		AuthSecret:          cfg.AuthJWTSecret,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	// Expired holds are swept in the background; readers never depend on it.
	compactorCtx, stopCompactor := context.WithCancel(ctx)
	defer stopCompactor()
	compactor := holds.NewCompactor(holdManager, cfg.HoldCompactInterval, logger)
	go compactor.Run(compactorCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopCompactor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
