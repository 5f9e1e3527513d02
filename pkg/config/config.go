package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 所有环境变量只在这里读取
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional outcome archive)
	Database DatabaseConfig

	// Redis (optional kline cache + shared rate limit)
	Redis RedisConfig

	// Screener
	Screener ScreenerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration. The archive is optional:
// an empty URL disables it and run outcomes stay in memory only.
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ScreenerConfig holds the screening run defaults recognized by the core.
type ScreenerConfig struct {
	Market             string
	SourcePriority     []string // adapter identifiers, preferred first
	DegradationEnabled bool
	DegradationLevel   string // LOW, MEDIUM, HIGH
	RequestTimeout     time.Duration
	EnrichWorkers      int
	StrategyFile       string // YAML with per-stage thresholds; empty = built-in defaults
	ScheduleSpec       string // cron spec for automatic tail-window runs
}

// Load reads configuration from environment variables
// ⭐ SSOT: 只有这个函数调用 os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Screener: ScreenerConfig{
			Market:             getEnv("SCREENER_MARKET", "SH"),
			SourcePriority:     getEnvAsList("SOURCE_PRIORITY", "sina,eastmoney,tencent,hexun"),
			DegradationEnabled: getEnvAsBool("DEGRADATION_ENABLED", false),
			DegradationLevel:   getEnv("DEGRADATION_LEVEL", "MEDIUM"),
			RequestTimeout:     getEnvAsDuration("REQUEST_TIMEOUT", "10s"),
			EnrichWorkers:      getEnvAsInt("ENRICH_WORKERS", 8),
			StrategyFile:       getEnv("STRATEGY_FILE", ""),
			// 尾盘时段 14:35 触发 (工作日)
			ScheduleSpec: getEnv("SCHEDULE_SPEC", "0 35 14 * * MON-FRI"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Screener.DegradationLevel {
	case "LOW", "MEDIUM", "HIGH":
	default:
		return fmt.Errorf("DEGRADATION_LEVEL must be one of: LOW, MEDIUM, HIGH")
	}

	if len(c.Screener.SourcePriority) == 0 {
		return fmt.Errorf("SOURCE_PRIORITY must name at least one source")
	}

	if c.Screener.EnrichWorkers <= 0 {
		return fmt.Errorf("ENRICH_WORKERS must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
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
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
