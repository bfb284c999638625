package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Store
	StoreDriver string // "sqlite" or "memory"
	SQLitePath  string

	// Reminder delivery
	ReminderWebhookURL string
	HTTPTimeout        time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Auth
	JWTSecret  string
	APIKeyHash string // bcrypt hash of the service-to-service API key

	// Ledger policy
	CreditExpiryMonths int
	DefaultGraceDays   int
	DailyInterestPct   decimal.Decimal
	AdminFeeStep       decimal.Decimal
	LegalFee           decimal.Decimal
	CollectionPct      decimal.Decimal
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:  getEnv("SQLITE_PATH", "condo-ledger.db"),

		ReminderWebhookURL: getEnv("REMINDER_WEBHOOK_URL", ""),
		HTTPTimeout:        getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 10),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret:  getEnv("JWT_SECRET", "ledgerd-default-dev-secret-change-me"),
		APIKeyHash: getEnv("API_KEY_HASH", ""),

		CreditExpiryMonths: getEnvInt("CREDIT_EXPIRY_MONTHS", 12),
		DefaultGraceDays:   getEnvInt("DEFAULT_GRACE_DAYS", 5),
		DailyInterestPct:   getEnvDecimal("DAILY_INTEREST_PCT", "0.1"),
		AdminFeeStep:       getEnvDecimal("ADMIN_FEE_STEP", "50"),
		LegalFee:           getEnvDecimal("LEGAL_FEE", "500"),
		CollectionPct:      getEnvDecimal("COLLECTION_PCT", "25"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	d, err := decimal.NewFromString(fallback)
	if err != nil {
		panic("config: bad decimal default for " + key)
	}
	return d
}
