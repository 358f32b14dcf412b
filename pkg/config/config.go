package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel  string
	LogFormat string
	HTTPPort  string

	// Provider API
	ProviderAPIURL string
	ProviderWSURL  string
	ProviderAPIKey string

	// Scanning
	ScanGames    []string
	ScanInterval time.Duration
	FeeBPS       int64
	Blacklist    []string
	Whitelist    []string

	// Market data cache
	CacheTTL         time.Duration
	CacheMaxCost     int64
	CacheNumCounters int64

	// Rate limiting (tokens per bucket, refill per second)
	MarketRateCapacity  float64
	MarketRateRefill    float64
	TradeRateCapacity   float64
	TradeRateRefill     float64
	AccountRateCapacity float64
	AccountRateRefill   float64
	AcquireTimeout      time.Duration

	// Circuit breaker
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration

	// Retries
	RetryMaxAttempts       int
	RetryInitialBackoff    time.Duration
	RetryBackoffMultiplier float64

	// WebSocket
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Trading
	TradingMode        string // "observe" or "auto"
	BudgetCeiling      int64  // cumulative cap across all live targets, minor units
	MaxTargetsPerCycle int
	BidIncrement       int64
	BudgetHeadroomBPS  int64
	RiskSkipFlags      []string

	// Tier overrides: TIER_MIN_ROI_<NAME>=<percent> lowers or raises one
	// tier's ROI floor without redefining the whole tier set.
	TierMinROIOverrides map[string]float64

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),

		// Provider defaults
		ProviderAPIURL: getEnvOrDefault("PROVIDER_API_URL", "https://api.skinport.dev"),
		ProviderWSURL:  getEnvOrDefault("PROVIDER_WS_URL", "wss://ws.skinport.dev/v1"),
		ProviderAPIKey: os.Getenv("PROVIDER_API_KEY"),

		// Scanning defaults
		ScanGames:    getListOrDefault("SCAN_GAMES", []string{"csgo"}),
		ScanInterval: getDurationOrDefault("SCAN_INTERVAL", 30*time.Second),
		FeeBPS:       getInt64OrDefault("MARKETPLACE_FEE_BPS", 700),
		Blacklist:    getListOrDefault("ITEM_BLACKLIST", nil),
		Whitelist:    getListOrDefault("ITEM_WHITELIST", nil),

		// Cache defaults
		CacheTTL:         getDurationOrDefault("CACHE_TTL", 2*time.Minute),
		CacheMaxCost:     getInt64OrDefault("CACHE_MAX_COST", 10000),
		CacheNumCounters: getInt64OrDefault("CACHE_NUM_COUNTERS", 100000),

		// Rate limit defaults
		MarketRateCapacity:  getFloat64OrDefault("RATE_MARKET_CAPACITY", 8),
		MarketRateRefill:    getFloat64OrDefault("RATE_MARKET_REFILL", 2),
		TradeRateCapacity:   getFloat64OrDefault("RATE_TRADE_CAPACITY", 2),
		TradeRateRefill:     getFloat64OrDefault("RATE_TRADE_REFILL", 0.5),
		AccountRateCapacity: getFloat64OrDefault("RATE_ACCOUNT_CAPACITY", 4),
		AccountRateRefill:   getFloat64OrDefault("RATE_ACCOUNT_REFILL", 1),
		AcquireTimeout:      getDurationOrDefault("RATE_ACQUIRE_TIMEOUT", 10*time.Second),

		// Breaker defaults
		BreakerFailureThreshold: getIntOrDefault("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:         getDurationOrDefault("BREAKER_COOLDOWN", 30*time.Second),

		// Retry defaults
		RetryMaxAttempts:       getIntOrDefault("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff:    getDurationOrDefault("RETRY_INITIAL_BACKOFF", 250*time.Millisecond),
		RetryBackoffMultiplier: getFloat64OrDefault("RETRY_BACKOFF_MULTIPLIER", 2.0),

		// WebSocket defaults
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 1000),

		// Trading defaults
		TradingMode:        getEnvOrDefault("TRADING_MODE", "observe"),
		BudgetCeiling:      getInt64OrDefault("BUDGET_CEILING", 100000),
		MaxTargetsPerCycle: getIntOrDefault("MAX_TARGETS_PER_CYCLE", 5),
		BidIncrement:       getInt64OrDefault("TARGET_BID_INCREMENT", 5),
		BudgetHeadroomBPS:  getInt64OrDefault("TARGET_BUDGET_HEADROOM_BPS", 1000),
		RiskSkipFlags:      getListOrDefault("RISK_SKIP_FLAGS", []string{"thin-margin"}),

		TierMinROIOverrides: tierOverridesFromEnv(),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "skinarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "skinarb123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "skinarb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.ProviderAPIURL == "" {
		return fmt.Errorf("PROVIDER_API_URL cannot be empty")
	}

	if c.ProviderWSURL == "" {
		return fmt.Errorf("PROVIDER_WS_URL cannot be empty")
	}

	if len(c.ScanGames) == 0 {
		return fmt.Errorf("SCAN_GAMES cannot be empty")
	}

	if c.FeeBPS < 0 || c.FeeBPS >= 10000 {
		return fmt.Errorf("MARKETPLACE_FEE_BPS must be between 0 and 10000, got %d", c.FeeBPS)
	}

	if c.TradingMode != "observe" && c.TradingMode != "auto" {
		return fmt.Errorf("TRADING_MODE must be 'observe' or 'auto', got %q", c.TradingMode)
	}

	if c.TradingMode == "auto" {
		if c.BudgetCeiling <= 0 {
			return fmt.Errorf("BUDGET_CEILING must be positive, got %d", c.BudgetCeiling)
		}
		if c.BidIncrement <= 0 {
			return fmt.Errorf("TARGET_BID_INCREMENT must be positive, got %d", c.BidIncrement)
		}
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	return nil
}

// tierOverridesFromEnv collects TIER_MIN_ROI_<NAME>=<percent> variables.
// Names are lowercased so TIER_MIN_ROI_BOOST overrides the "boost" tier.
func tierOverridesFromEnv() map[string]float64 {
	const prefix = "TIER_MIN_ROI_"

	overrides := make(map[string]float64)
	for _, env := range os.Environ() {
		key, value, found := strings.Cut(env, "=")
		if !found || !strings.HasPrefix(key, prefix) {
			continue
		}
		roi, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		overrides[strings.ToLower(strings.TrimPrefix(key, prefix))] = roi
	}
	return overrides
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
