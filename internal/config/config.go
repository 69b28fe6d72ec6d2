// Package config loads process configuration from flags and environment
// variables, in the teacher's exact LoadConfigFromFlags style
// (server/config.go): flags set the defaults, then environment variables
// override them.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the bootstrap container needs to wire the
// pipeline end to end.
type Config struct {
	// Model configuration
	AnthropicAPIKey    string
	PreferredModel     string
	FallbackModel      string
	RetryMaxAttempts   int
	RetryInitialDelay  time.Duration
	RetryMaxDelay      time.Duration

	// Database pool configuration. These are parsed from flags and env but
	// not applied: adapter.Factory opens every pool with
	// DefaultPostgresPoolConfig / DefaultMongoPoolConfig.
	PostgresMaxConns int
	PostgresMinConns int
	MongoMaxConns    int
	MongoMinConns    int

	// Execution configuration
	MaxRows        int
	MaxConcurrency int

	// Advisory cache configuration
	CacheEnabled         bool
	CacheSize            int
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
	RedisURL             string

	// Account/demo configuration
	DemoAccountEnabled bool
	DemoPostgresURL    string
	DemoMongoURL       string

	// Security
	EncryptionSecret string
}

// Default mirrors the teacher's DefaultServerConfig: every field gets a
// concrete, production-plausible value before flags or environment
// variables are consulted.
func Default() *Config {
	return &Config{
		PreferredModel:    "claude-sonnet-4-5",
		FallbackModel:     "claude-3-5-haiku-latest",
		RetryMaxAttempts:  3,
		RetryInitialDelay: time.Second,
		RetryMaxDelay:     60 * time.Second,

		PostgresMaxConns: 10,
		PostgresMinConns: 2,
		MongoMaxConns:    10,
		MongoMinConns:    1,

		MaxRows:        10000,
		MaxConcurrency: 10,

		CacheEnabled:         true,
		CacheSize:            1000,
		CacheTTL:             15 * time.Minute,
		CacheCleanupInterval: 5 * time.Minute,

		DemoAccountEnabled: true,
	}
}

// LoadFromFlags parses command-line flags over the defaults, then applies
// environment variable overrides, matching the teacher's two-stage
// flags-then-env precedence in server/config.go's LoadConfigFromFlags.
func LoadFromFlags() *Config {
	cfg := Default()

	flag.StringVar(&cfg.PreferredModel, "preferred-model", cfg.PreferredModel, "Preferred model ID for plan synthesis and validation")
	flag.StringVar(&cfg.FallbackModel, "fallback-model", cfg.FallbackModel, "Fallback model ID used after the preferred model exhausts its retries")
	flag.IntVar(&cfg.RetryMaxAttempts, "retry-max-attempts", cfg.RetryMaxAttempts, "Maximum retry attempts per model call")
	flag.DurationVar(&cfg.RetryInitialDelay, "retry-initial-delay", cfg.RetryInitialDelay, "Initial retry backoff delay")
	flag.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry backoff delay")

	flag.IntVar(&cfg.PostgresMaxConns, "postgres-max-conns", cfg.PostgresMaxConns, "Maximum Postgres pool connections")
	flag.IntVar(&cfg.PostgresMinConns, "postgres-min-conns", cfg.PostgresMinConns, "Minimum Postgres pool connections")
	flag.IntVar(&cfg.MongoMaxConns, "mongo-max-conns", cfg.MongoMaxConns, "Maximum Mongo pool connections")
	flag.IntVar(&cfg.MongoMinConns, "mongo-min-conns", cfg.MongoMinConns, "Minimum Mongo pool connections")

	flag.IntVar(&cfg.MaxRows, "max-rows", cfg.MaxRows, "Maximum rows/documents returned per query")
	flag.IntVar(&cfg.MaxConcurrency, "max-concurrency", cfg.MaxConcurrency, "Maximum concurrent queries during cross-database fan-out")

	flag.BoolVar(&cfg.CacheEnabled, "cache-enabled", cfg.CacheEnabled, "Enable the advisory cache")
	flag.IntVar(&cfg.CacheSize, "cache-size", cfg.CacheSize, "Maximum advisory cache entries")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Advisory cache entry TTL")
	flag.DurationVar(&cfg.CacheCleanupInterval, "cache-cleanup-interval", cfg.CacheCleanupInterval, "Advisory cache cleanup sweep interval")

	flag.BoolVar(&cfg.DemoAccountEnabled, "demo-account-enabled", cfg.DemoAccountEnabled, "Enable the built-in demo account")

	flag.Parse()

	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.PreferredModel = getEnv("PREFERRED_MODEL", cfg.PreferredModel)
	cfg.FallbackModel = getEnv("FALLBACK_MODEL", cfg.FallbackModel)

	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.EncryptionSecret = getEnv("ENCRYPTION_SECRET", cfg.EncryptionSecret)

	cfg.DemoAccountEnabled = getEnvBool("DEMO_ACCOUNT_ENABLED", cfg.DemoAccountEnabled)
	cfg.DemoPostgresURL = getEnv("DEMO_POSTGRES_URL", cfg.DemoPostgresURL)
	cfg.DemoMongoURL = getEnv("DEMO_MONGODB_URL", cfg.DemoMongoURL)

	cfg.MaxRows = getEnvInt("MAX_ROWS", cfg.MaxRows)
	cfg.MaxConcurrency = getEnvInt("MAX_CONCURRENCY", cfg.MaxConcurrency)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
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
