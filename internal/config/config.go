package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the phychat backend
type Config struct {
	Server   ServerConfig
	CORS     CORSConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Redis    RedisConfig
	History  HistoryConfig
	Catalog  CatalogConfig
	Tutor    TutorConfig
	Random   RandomConfig
	Health   HealthConfig
	Limits   RateLimitConfig
	LogLevel slog.Level
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
	// TrustProxy honours X-Forwarded-For and X-Real-IP; enable only behind a proxy that sets them
	TrustProxy bool
}

// CORSConfig holds the origins allowed to call the API from a browser
type CORSConfig struct {
	AllowedOrigins []string
}

// AuthConfig holds API key authentication settings.
// An empty key list disables authentication.
type AuthConfig struct {
	APIKeys []string
}

// DatabaseConfig holds PostgreSQL configuration.
// An empty DSN selects the in-memory repository.
type DatabaseConfig struct {
	DSN           string
	MaxConns      int
	MinConns      int
	MigrationsDir string
}

// RedisConfig holds Redis configuration.
// An empty address selects the in-memory conversation history.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// HistoryConfig holds conversation history settings
type HistoryConfig struct {
	Limit       int
	MaxMessages int
	TTL         time.Duration
}

// CatalogConfig holds challenge catalog settings
type CatalogConfig struct {
	File string
}

// TutorConfig holds tutor engine settings
type TutorConfig struct {
	UseMock bool
}

// RandomConfig holds the seed for the engines' random source (0 = clock)
type RandomConfig struct {
	Seed uint64
}

// HealthConfig holds dependency monitor settings
type HealthConfig struct {
	Interval time.Duration
}

// RateLimitConfig holds per-client request limits for the chat endpoints.
// Zero disables limiting.
type RateLimitConfig struct {
	ChatPerSecond int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	frontendURL := getEnv("FRONTEND_URL", "http://localhost:3000")

	cfg := &Config{
		Server: ServerConfig{
			Host:       getEnv("SERVER_HOST", "0.0.0.0"),
			Port:       getEnvAsInt("SERVER_PORT", 8000),
			TrustProxy: getEnvAsBool("TRUST_PROXY", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: uniqueStrings([]string{
				frontendURL,
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}),
		},
		Auth: AuthConfig{
			APIKeys: getEnvAsList("API_KEYS"),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MaxConns:      getEnvAsInt("DATABASE_MAX_CONNS", 10),
			MinConns:      getEnvAsInt("DATABASE_MIN_CONNS", 2),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		History: HistoryConfig{
			Limit:       getEnvAsInt("HISTORY_LIMIT", 5),
			MaxMessages: getEnvAsInt("HISTORY_MAX_MESSAGES", 100),
			TTL:         getEnvAsDuration("HISTORY_TTL", 7*24*time.Hour),
		},
		Catalog: CatalogConfig{
			File: getEnv("CATALOG_FILE", "./catalog/challenges.yaml"),
		},
		Tutor: TutorConfig{
			UseMock: getEnvAsBool("USE_MOCK_AI", true),
		},
		Random: RandomConfig{
			Seed: uint64(getEnvAsInt("RANDOM_SEED", 0)),
		},
		Health: HealthConfig{
			Interval: getEnvAsDuration("HEALTH_INTERVAL", 30*time.Second),
		},
		Limits: RateLimitConfig{
			ChatPerSecond: getEnvAsInt("CHAT_RATE_LIMIT", 5),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.History.Limit < 0 {
		return fmt.Errorf("history limit must not be negative: %d", c.History.Limit)
	}

	if c.History.MaxMessages < c.History.Limit {
		return fmt.Errorf("history max messages (%d) must be at least the history limit (%d)",
			c.History.MaxMessages, c.History.Limit)
	}

	if c.Health.Interval <= 0 {
		return fmt.Errorf("health interval must be positive")
	}

	if c.Limits.ChatPerSecond < 0 {
		return fmt.Errorf("chat rate limit must not be negative: %d", c.Limits.ChatPerSecond)
	}

	return nil
}

// UsesPostgres reports whether a PostgreSQL DSN was configured
func (c *Config) UsesPostgres() bool {
	return c.Database.DSN != ""
}

// UsesRedis reports whether a Redis address was configured
func (c *Config) UsesRedis() bool {
	return c.Redis.Address != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}

	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value, exists := os.LookupEnv(key); exists {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return defaultValue
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
