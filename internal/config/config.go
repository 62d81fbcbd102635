package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AuthJWTSecret      string
	CORSAllowedOrigins []string

	// Slot generation
	SlotGridMinutes     int
	SlotMaxHorizonDays  int
	SlotMaxProviders    int
	SlotLeadTimeMinutes int
	DefaultDayStart     string
	DefaultDayEnd       string
	WeeklyDayOff        int

	// Reservation holds
	HoldTTL             time.Duration
	HoldCompactInterval time.Duration

	// Enrollment pause budget
	MaxPauseCount       int
	MaxPauseDaysSingle  int
	MaxPauseDaysTotal   int
	PauseMinNoticeHours int

	// External collaborators
	CalendarBaseURL string
	CalendarAPIKey  string
	VideoBotBaseURL string
	VideoBotAPIKey  string

	// Shared-store rate limiting
	RateLimitPerMinute int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AuthJWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),

		SlotGridMinutes:     getEnvAsInt("SLOT_GRID_MINUTES", 30),
		SlotMaxHorizonDays:  getEnvAsInt("SLOT_MAX_HORIZON_DAYS", 30),
		SlotMaxProviders:    getEnvAsInt("SLOT_MAX_PROVIDERS", 25),
		SlotLeadTimeMinutes: getEnvAsInt("SLOT_LEAD_TIME_MINUTES", 120),
		DefaultDayStart:     getEnv("DEFAULT_DAY_START", "09:00"),
		DefaultDayEnd:       getEnv("DEFAULT_DAY_END", "17:00"),
		WeeklyDayOff:        getEnvAsInt("WEEKLY_DAY_OFF", 0),

		HoldTTL:             getEnvAsDuration("HOLD_TTL", 3*time.Minute),
		HoldCompactInterval: getEnvAsDuration("HOLD_COMPACT_INTERVAL", 10*time.Minute),

		MaxPauseCount:       getEnvAsInt("MAX_PAUSE_COUNT", 3),
		MaxPauseDaysSingle:  getEnvAsInt("MAX_PAUSE_DAYS_SINGLE", 30),
		MaxPauseDaysTotal:   getEnvAsInt("MAX_PAUSE_DAYS_TOTAL", 60),
		PauseMinNoticeHours: getEnvAsInt("PAUSE_MIN_NOTICE_HOURS", 24),

		CalendarBaseURL: getEnv("CALENDAR_BASE_URL", ""),
		CalendarAPIKey:  getEnv("CALENDAR_API_KEY", ""),
		VideoBotBaseURL: getEnv("VIDEOBOT_BASE_URL", ""),
		VideoBotAPIKey:  getEnv("VIDEOBOT_API_KEY", ""),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
