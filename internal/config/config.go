// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var databaseURLPattern = regexp.MustCompile(`^postgres(ql)?://`)

// Config holds application configuration
type Config struct {
	// Store
	DatabaseURL string
	DBPoolMax   int
	DBPoolMin   int

	// Provider credentials and endpoints
	FREDAPIKey         string
	AlphaVantageAPIKey string
	TwelveDataAPIKey   string
	CoinGeckoBase      string

	// Pipeline
	IngestCron            string
	WindowDays            int     // Rolling window for ingest-time z-scoring
	OutlierZThreshold     float64 // |z| at which health flips to outlier
	MaxMetricContribution float64 // Per-indicator cap after normalization
	StaleThreshold        time.Duration

	// Read API
	Port            int
	Host            string
	CORSOrigins     []string
	CacheEnabled    bool
	CacheTTL        time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Alerts
	AlertEnabled    bool
	AlertWebhookURL string

	LogLevel string
}

// Load reads configuration from environment variables (and .env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBPoolMax:   getEnvAsInt("DB_POOL_MAX", 10),
		DBPoolMin:   getEnvAsInt("DB_POOL_MIN", 2),

		FREDAPIKey:         getEnv("FRED_API_KEY", ""),
		AlphaVantageAPIKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),
		TwelveDataAPIKey:   getEnv("TWELVEDATA_API_KEY", ""),
		CoinGeckoBase:      getEnv("COINGECKO_BASE", "https://api.coingecko.com/api/v3"),

		IngestCron:            getEnv("INGEST_CRON", "* * * * *"),
		WindowDays:            getEnvAsInt("PXI_WINDOW_DAYS", 90),
		OutlierZThreshold:     getEnvAsFloat("OUTLIER_Z_THRESHOLD", 4.0),
		MaxMetricContribution: getEnvAsFloat("MAX_METRIC_CONTRIBUTION", 0.25),
		StaleThreshold:        time.Duration(getEnvAsInt("STALE_THRESHOLD_MS", 300_000)) * time.Millisecond,

		Port:            getEnvAsInt("PORT", 8080),
		Host:            getEnv("HOST", "0.0.0.0"),
		CORSOrigins:     splitOrigins(getEnv("CORS_ORIGINS", "*")),
		CacheEnabled:    getEnvAsBool("CACHE_ENABLED", true),
		CacheTTL:        time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 15)) * time.Second,
		RateLimitMax:    getEnvAsInt("RATE_LIMIT_MAX", 120),
		RateLimitWindow: time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		AlertEnabled:    getEnvAsBool("ALERT_ENABLED", false),
		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and well-formed.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if !databaseURLPattern.MatchString(c.DatabaseURL) {
		return fmt.Errorf("DATABASE_URL must be a postgres:// or postgresql:// DSN")
	}

	for name, key := range map[string]string{
		"FRED_API_KEY":          c.FREDAPIKey,
		"ALPHA_VANTAGE_API_KEY": c.AlphaVantageAPIKey,
		"TWELVEDATA_API_KEY":    c.TwelveDataAPIKey,
	} {
		if len(key) < 8 {
			return fmt.Errorf("%s is required and must be at least 8 characters", name)
		}
	}

	if c.WindowDays < 5 {
		return fmt.Errorf("PXI_WINDOW_DAYS must be at least 5, got %d", c.WindowDays)
	}
	if c.MaxMetricContribution <= 0 || c.MaxMetricContribution > 1 {
		return fmt.Errorf("MAX_METRIC_CONTRIBUTION must be in (0, 1], got %f", c.MaxMetricContribution)
	}
	if c.DBPoolMin > c.DBPoolMax {
		return fmt.Errorf("DB_POOL_MIN (%d) must not exceed DB_POOL_MAX (%d)", c.DBPoolMin, c.DBPoolMax)
	}

	return nil
}

// splitOrigins parses CORS_ORIGINS: "*" or a comma-separated allowlist.
func splitOrigins(raw string) []string {
	if raw == "*" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
