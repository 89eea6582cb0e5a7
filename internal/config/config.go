// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string
	Version  string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Upstream services
	HistoryAPIAddr      string // transaction history service host:port
	TransactionsAPIAddr string // ledger writer service host:port
	HistoryTimeout      time.Duration
	LedgerTimeout       time.Duration

	// AI pattern analysis
	GeminiAPIKey  string // absence forces degraded mode from startup
	GeminiModel   string
	AICallTimeout time.Duration

	// Decision policy
	BlockThreshold float64
	FlagThreshold  float64
	AmountWeight   float64
	VelocityWeight float64
	TimeWeight     float64
	PatternWeight  float64

	// Analyzer tuning
	HistoryLimit      int
	VelocityWindow    time.Duration
	VelocityMaxCount  int
	AmountCeiling     float64
	OutlierSigmas     float64
	MinHistoryForStat int

	// Security / observability
	RateLimitRPM       int
	AlertWebhookURL    string // optional webhook for block alerts
	AlertWebhookSecret string // optional HMAC secret for alert payloads
	OTLPEndpoint       string
}

// Defaults
const (
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultVersion       = "1.0.0"
	DefaultHistoryAddr   = "transactionhistory:8080"
	DefaultLedgerAddr    = "ledgerwriter:8080"
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultFlagThreshold = 0.3
	DefaultRateLimitRPM  = 120
)

// envBlockThreshold maps environment to its default block threshold.
// Production runs the strictest policy.
var envBlockThreshold = map[string]float64{
	"development": 0.5,
	"staging":     0.6,
	"production":  0.7,
}

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", DefaultEnv)
	blockDefault, ok := envBlockThreshold[env]
	if !ok {
		blockDefault = envBlockThreshold["production"]
	}

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 env,
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		Version:             getEnv("VERSION", DefaultVersion),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		HistoryAPIAddr:      getEnv("HISTORY_API_ADDR", DefaultHistoryAddr),
		TransactionsAPIAddr: getEnv("TRANSACTIONS_API_ADDR", DefaultLedgerAddr),
		HistoryTimeout:      getEnvSeconds("HISTORY_TIMEOUT_SECONDS", 5),
		LedgerTimeout:       getEnvSeconds("LEDGER_TIMEOUT_SECONDS", 10),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"), // Optional, no default
		GeminiModel:         getEnv("GEMINI_MODEL", DefaultGeminiModel),
		AICallTimeout:       getEnvSeconds("AI_CALL_TIMEOUT_SECONDS", 5),
		BlockThreshold:      getEnvFloat("FRAUD_THRESHOLD", blockDefault),
		FlagThreshold:       getEnvFloat("FLAG_THRESHOLD", DefaultFlagThreshold),
		AmountWeight:        getEnvFloat("AMOUNT_WEIGHT", 0.25),
		VelocityWeight:      getEnvFloat("VELOCITY_WEIGHT", 0.25),
		TimeWeight:          getEnvFloat("TIME_WEIGHT", 0.15),
		PatternWeight:       getEnvFloat("PATTERN_WEIGHT", 0.35),
		HistoryLimit:        getEnvInt("HISTORY_LIMIT", 100),
		VelocityWindow:      time.Duration(getEnvInt("VELOCITY_WINDOW_MINUTES", 10)) * time.Minute,
		VelocityMaxCount:    getEnvInt("VELOCITY_MAX_COUNT", 5),
		AmountCeiling:       getEnvFloat("AMOUNT_CEILING", 10000),
		OutlierSigmas:       getEnvFloat("OUTLIER_SIGMAS", 3),
		MinHistoryForStat:   getEnvInt("MIN_HISTORY_FOR_STATS", 5),
		RateLimitRPM:        getEnvInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),
		AlertWebhookURL:     os.Getenv("FRAUD_ALERT_WEBHOOK_URL"),
		AlertWebhookSecret:  os.Getenv("FRAUD_ALERT_WEBHOOK_SECRET"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the decision policy. Configuration errors are fatal at
// startup; they are not recoverable at request time.
func (c *Config) Validate() error {
	if c.BlockThreshold <= 0 || c.BlockThreshold > 1 {
		return fmt.Errorf("FRAUD_THRESHOLD must be in (0, 1], got %v", c.BlockThreshold)
	}
	if c.FlagThreshold <= 0 || c.FlagThreshold >= c.BlockThreshold {
		return fmt.Errorf("FLAG_THRESHOLD must be in (0, FRAUD_THRESHOLD), got %v", c.FlagThreshold)
	}

	weights := map[string]float64{
		"AMOUNT_WEIGHT":   c.AmountWeight,
		"VELOCITY_WEIGHT": c.VelocityWeight,
		"TIME_WEIGHT":     c.TimeWeight,
		"PATTERN_WEIGHT":  c.PatternWeight,
	}
	sum := 0.0
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, w)
		}
		sum += w
	}
	// Weights must sum to 1.0 for the composite score to stay in [0, 1].
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("analyzer weights must sum to 1.0, got %v", sum)
	}

	if c.AICallTimeout <= 0 {
		return fmt.Errorf("AI_CALL_TIMEOUT_SECONDS must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	if c.VelocityWindow <= 0 || c.VelocityMaxCount <= 0 {
		return fmt.Errorf("velocity window and count threshold must be positive")
	}
	if c.AmountCeiling <= 0 {
		return fmt.Errorf("AMOUNT_CEILING must be positive")
	}

	return nil
}

// HasAICredentials reports whether a usable Gemini API key is configured.
// The literal dummy key used in test environments does not count.
func (c *Config) HasAICredentials() bool {
	return c.GeminiAPIKey != "" && c.GeminiAPIKey != "dummy-api-key-for-testing"
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
