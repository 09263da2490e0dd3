package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ProofSecret signs payment proof tokens. Required outside development.
	ProofSecret string
	ProofHeader string

	TreasuryToken string

	QuoteTTL       time.Duration
	ProofValidity  time.Duration
	AdapterTimeout time.Duration

	// SwapFeeBps is the fee charged by the mock swap adapter, in basis points.
	SwapFeeBps int64

	// FXRates holds static conversion rates keyed "FROM/TO",
	// populated from FX_RATE_<FROM>_<TO> environment variables.
	FXRates map[string]float64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "tollgate"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "tollgate"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		ProofSecret: strings.TrimSpace(getenv("PROOF_SECRET", "")),
		ProofHeader: getenv("PROOF_HEADER", "X-402-Payment-Proof"),

		TreasuryToken: strings.ToUpper(getenv("TREASURY_TOKEN", "MNEE")),

		QuoteTTL:       getenvDuration("QUOTE_TTL", 60*time.Second),
		ProofValidity:  getenvDuration("PROOF_VALIDITY", 24*time.Hour),
		AdapterTimeout: getenvDuration("ADAPTER_TIMEOUT", 15*time.Second),

		SwapFeeBps: getenvInt64("SWAP_FEE_BPS", 30),

		FXRates: loadFXRates(),
	}

	return cfg
}

const fxRatePrefix = "FX_RATE_"

func loadFXRates() map[string]float64 {
	rates := make(map[string]float64)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, fxRatePrefix) {
			continue
		}
		pair := strings.TrimPrefix(key, fxRatePrefix)
		from, to, ok := strings.Cut(pair, "_")
		if !ok {
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || rate <= 0 {
			continue
		}
		rates[strings.ToUpper(from)+"/"+strings.ToUpper(to)] = rate
	}
	return rates
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
