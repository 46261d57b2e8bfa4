package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Logging configuration
	Logging LoggingConfig

	// Booking engine configuration
	Booking BookingConfig

	// Retention job configuration
	Retention RetentionConfig

	// Notification configuration
	Notification NotificationConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	QueryTimeout       time.Duration // per attempt
	RetryAttempts      int           // total tries for transient failures
	RetryBaseDelay     time.Duration
	AutoMigrate        bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     string // stdout, file
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// BookingConfig holds booking engine configuration
type BookingConfig struct {
	// ResourcePolicy selects how the single-resource rule is scoped:
	// "cross_destination" ignores bookings at the same destination, "global" does not
	ResourcePolicy string
	TimeZone       string // zone used to decide what "today" is
	MaxRangeDays   int
}

// RetentionConfig holds cancelled-booking cleanup configuration
type RetentionConfig struct {
	Enabled      bool
	Schedule     string // robfig/cron spec
	InitialDelay time.Duration
	WindowDays   int
}

// NotificationConfig holds outbound notification configuration
type NotificationConfig struct {
	Workers        int
	QueueSize      int
	Timeout        time.Duration
	RatePerSecond  float64
	WebhookURL     string
	TelegramToken  string
	TelegramChatID int64

	// SMS (Dialog eSMS)
	SMSMode     string // "dev" logs only, "production" sends
	SMSAPIURL   string
	SMSUsername string
	SMSPassword string
	SMSMask     string
}

// RateLimitConfig holds rate limiting configuration for public endpoints
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			QueryTimeout:       getEnvAsDuration("DATABASE_QUERY_TIMEOUT", 5*time.Second),
			RetryAttempts:      getEnvAsInt("DATABASE_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:     getEnvAsDuration("DATABASE_RETRY_BASE_DELAY", 100*time.Millisecond),
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			Issuer:            getEnv("JWT_ISSUER", "islandtrails-auth"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			FilePath:   getEnv("LOG_FILE_PATH", "logs/excursion-backend.log"),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
		},
		Booking: BookingConfig{
			ResourcePolicy: getEnv("BOOKING_RESOURCE_POLICY", "cross_destination"),
			TimeZone:       getEnv("BOOKING_TIMEZONE", "UTC"),
			MaxRangeDays:   getEnvAsInt("BOOKING_MAX_RANGE_DAYS", 60),
		},
		Retention: RetentionConfig{
			Enabled:      getEnvAsBool("RETENTION_ENABLED", true),
			Schedule:     getEnv("RETENTION_SCHEDULE", "@every 24h"),
			InitialDelay: getEnvAsDuration("RETENTION_INITIAL_DELAY", 30*time.Second),
			WindowDays:   getEnvAsInt("RETENTION_WINDOW_DAYS", 7),
		},
		Notification: NotificationConfig{
			Workers:        getEnvAsInt("NOTIFY_WORKERS", 2),
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			Timeout:        getEnvAsDuration("NOTIFY_TIMEOUT", 15*time.Second),
			RatePerSecond:  getEnvAsFloat("NOTIFY_RATE_PER_SECOND", 5),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			TelegramToken:  getEnv("NOTIFY_TELEGRAM_TOKEN", ""),
			TelegramChatID: int64(getEnvAsInt("NOTIFY_TELEGRAM_CHAT_ID", 0)),
			SMSMode:        getEnv("SMS_MODE", "dev"),
			SMSAPIURL:      getEnv("DIALOG_SMS_API_URL", "https://e-sms.dialog.lk/api/v2"),
			SMSUsername:    getEnv("DIALOG_SMS_USERNAME", ""),
			SMSPassword:    getEnv("DIALOG_SMS_PASSWORD", ""),
			SMSMask:        getEnv("DIALOG_SMS_MASK", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.Booking.ResourcePolicy {
	case "cross_destination", "global":
	default:
		return fmt.Errorf("invalid BOOKING_RESOURCE_POLICY: %s (must be 'cross_destination' or 'global')", c.Booking.ResourcePolicy)
	}

	if _, err := time.LoadLocation(c.Booking.TimeZone); err != nil {
		return fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", c.Booking.TimeZone, err)
	}

	if c.Booking.MaxRangeDays < 1 || c.Booking.MaxRangeDays > 366 {
		return fmt.Errorf("BOOKING_MAX_RANGE_DAYS must be between 1 and 366")
	}

	if c.Retention.WindowDays < 1 {
		return fmt.Errorf("RETENTION_WINDOW_DAYS must be at least 1")
	}

	// SMS credentials are only needed when messages are actually sent
	if c.Notification.SMSMode == "production" {
		if c.Notification.SMSUsername == "" || c.Notification.SMSPassword == "" {
			return fmt.Errorf("DIALOG_SMS_USERNAME and DIALOG_SMS_PASSWORD are required when SMS_MODE=production")
		}
	}

	if c.Notification.TelegramToken != "" && c.Notification.TelegramChatID == 0 {
		return fmt.Errorf("NOTIFY_TELEGRAM_CHAT_ID is required when NOTIFY_TELEGRAM_TOKEN is set")
	}

	return nil
}

// Location returns the booking time zone, defaulting to UTC
func (b BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction reports whether the server runs in production mode
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("5s", "250ms")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
