package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the service configuration, read from the environment.
// A .env file is loaded by cmd/server before Load is called.
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFile     string

	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Ranking  RankingConfig
	Refresh  RefreshConfig
	Tracing  TracingConfig
}

// DatabaseConfig selects and locates the content store database
type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	URL        string
	SQLitePath string
}

// RedisConfig locates the shared cache backend
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// CacheConfig controls the cache layer
type CacheConfig struct {
	Backend  string // "redis", "memory" or "tiered"
	L1Size   int
	L1TTL    time.Duration
	StaleTTL time.Duration
}

// RankingConfig controls scoring weights and store access
type RankingConfig struct {
	StoreTimeout            time.Duration
	HashtagRecentWeight     float64
	HashtagEngagementWeight float64
}

// RefreshConfig controls the scheduled trending warmup
type RefreshConfig struct {
	Enabled       bool
	Interval      time.Duration
	WarmLimit     int
	WarmTimeframe int
}

// TracingConfig controls OpenTelemetry export
type TracingConfig struct {
	Enabled      bool
	Endpoint     string
	SamplingRate float64
}

// Load reads the configuration from environment variables, applying defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8787"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:     getEnvOrDefault("LOG_FILE", "ranking.log"),
		Database: DatabaseConfig{
			Driver:     getEnvOrDefault("DB_DRIVER", "postgres"),
			URL:        os.Getenv("DATABASE_URL"),
			SQLitePath: getEnvOrDefault("SQLITE_PATH", "ranking.db"),
		},
		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Cache: CacheConfig{
			Backend: getEnvOrDefault("CACHE_BACKEND", "redis"),
		},
	}

	var err error
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Cache.L1Size, err = getInt("CACHE_L1_SIZE", 10000); err != nil {
		return nil, err
	}
	if cfg.Cache.L1TTL, err = getDuration("CACHE_L1_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Cache.StaleTTL, err = getDuration("CACHE_STALE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Ranking.StoreTimeout, err = getDuration("STORE_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.Ranking.HashtagRecentWeight, err = getFloat("SCORE_HASHTAG_RECENT_WEIGHT", 0.6); err != nil {
		return nil, err
	}
	if cfg.Ranking.HashtagEngagementWeight, err = getFloat("SCORE_HASHTAG_ENGAGEMENT_WEIGHT", 0.4); err != nil {
		return nil, err
	}
	if cfg.Refresh.Enabled, err = getBool("TRENDING_REFRESH_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.Refresh.Interval, err = getDuration("TRENDING_REFRESH_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Refresh.WarmLimit, err = getInt("TRENDING_WARM_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.Refresh.WarmTimeframe, err = getInt("TRENDING_WARM_TIMEFRAME", 24); err != nil {
		return nil, err
	}
	if cfg.Tracing.Enabled, err = getBool("OTEL_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.Tracing.Endpoint = getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	if cfg.Tracing.SamplingRate, err = getFloat("OTEL_SAMPLING_RATE", 1.0); err != nil {
		return nil, err
	}

	if cfg.Database.URL == "" && cfg.Database.Driver == "postgres" {
		cfg.Database.URL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnvOrDefault("DB_HOST", "localhost"),
			getEnvOrDefault("DB_PORT", "5432"),
			getEnvOrDefault("DB_USER", "postgres"),
			getEnvOrDefault("DB_PASSWORD", ""),
			getEnvOrDefault("DB_NAME", "sidechain"),
			getEnvOrDefault("DB_SSLMODE", "disable"),
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "redis", "memory", "tiered":
	default:
		return fmt.Errorf("CACHE_BACKEND must be redis, memory or tiered, got %q", c.Cache.Backend)
	}
	if c.Ranking.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.Refresh.WarmLimit < 1 || c.Refresh.WarmLimit > 100 {
		return fmt.Errorf("TRENDING_WARM_LIMIT must be between 1 and 100")
	}
	if c.Refresh.WarmTimeframe < 1 || c.Refresh.WarmTimeframe > 168 {
		return fmt.Errorf("TRENDING_WARM_TIMEFRAME must be between 1 and 168")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
