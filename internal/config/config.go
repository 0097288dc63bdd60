// Package config provides environment configuration for the assistant.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Calendar providers.
const (
	CalendarGoogle = "google"
	CalendarCalDAV = "caldav"
	CalendarNone   = "none"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Env                string
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Store
	DatabaseURL string

	// Auth. With AuthEnabled false every request acts as DefaultUserID.
	AuthEnabled   bool
	JWTSecret     string
	DefaultUserID string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string
	ReviewLLM       string
	ExtractionModel string
	ReviewModel     string
	LLMTimeout      time.Duration

	// Remote calendar
	CalendarProvider      string
	CalendarID            string
	CalendarTimeout       time.Duration
	GoogleCredentialsFile string
	GoogleTokenFile       string
	GoogleClientID        string
	GoogleClientSecret    string
	CalDAVEndpoint        string
	CalDAVUsername        string
	CalDAVPassword        string
	CalDAVCalendarName    string
	SyncLimit             int

	// Periodic reviewer
	ReviewerEnabled  bool
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
	ReminderHistory  int
	InsightInterval  time.Duration
	InsightLookback  time.Duration

	// NATS notifications; empty URL disables publishing.
	NATSURL      string
	NATSToken    string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string

	// CORS; empty allows any http(s) origin.
	CORSAllowedOrigins []string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:                getEnv("ENV", "production"),
		ServerPort:         getEnv("PORT", "8000"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", "calendar_assistant.db"),

		AuthEnabled:   getBoolEnv("AUTH_ENABLED", false),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		DefaultUserID: getEnv("DEFAULT_USER_ID", "default_user"),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "openai"),
		ReviewLLM:       getEnv("REVIEW_LLM", "anthropic"),
		ExtractionModel: getEnv("EXTRACTION_MODEL", ""),
		ReviewModel:     getEnv("REVIEW_MODEL", ""),
		LLMTimeout:      getDurationEnv("LLM_TIMEOUT", 60*time.Second),

		CalendarProvider:      strings.ToLower(getEnv("CALENDAR_PROVIDER", CalendarGoogle)),
		CalendarID:            getEnv("CALENDAR_ID", "primary"),
		CalendarTimeout:       getDurationEnv("CALENDAR_TIMEOUT", 15*time.Second),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		GoogleTokenFile:       getEnv("GOOGLE_TOKEN_FILE", "token.json"),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		CalDAVEndpoint:        getEnv("CALDAV_ENDPOINT", ""),
		CalDAVUsername:        getEnv("CALDAV_USERNAME", ""),
		CalDAVPassword:        getEnv("CALDAV_PASSWORD", ""),
		CalDAVCalendarName:    getEnv("CALDAV_CALENDAR_NAME", ""),
		SyncLimit:             getIntEnv("SYNC_LIMIT", 20),

		ReviewerEnabled:  getBoolEnv("REVIEWER_ENABLED", true),
		ReminderInterval: getDurationEnv("REMINDER_INTERVAL", 5*time.Minute),
		ReminderWindow:   getDurationEnv("REMINDER_WINDOW", 30*time.Minute),
		ReminderHistory:  getIntEnv("REMINDER_HISTORY", 20),
		InsightInterval:  getDurationEnv("INSIGHT_INTERVAL", 24*time.Hour),
		InsightLookback:  getDurationEnv("INSIGHT_LOOKBACK", 30*24*time.Hour),

		NATSURL:      getEnv("NATS_URL", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),

		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),

		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.AuthEnabled && c.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_ENABLED requires JWT_SECRET"))
	}
	if !c.AuthEnabled && c.DefaultUserID == "" {
		errs = append(errs, errors.New("DEFAULT_USER_ID must be set when auth is disabled"))
	}
	switch c.CalendarProvider {
	case CalendarGoogle, CalendarNone:
	case CalendarCalDAV:
		if c.CalDAVEndpoint == "" {
			errs = append(errs, errors.New("CALENDAR_PROVIDER=caldav requires CALDAV_ENDPOINT"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CALENDAR_PROVIDER %q", c.CalendarProvider))
	}
	if c.ReminderInterval <= 0 || c.InsightInterval <= 0 {
		errs = append(errs, errors.New("reviewer intervals must be positive"))
	}
	if c.ReminderWindow <= 0 || c.InsightLookback <= 0 {
		errs = append(errs, errors.New("reviewer windows must be positive"))
	}
	if c.SyncLimit <= 0 {
		errs = append(errs, errors.New("SYNC_LIMIT must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
