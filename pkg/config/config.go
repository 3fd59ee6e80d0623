package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDatabaseQueryTimeout is applied to every statement unless overridden.
const DefaultDatabaseQueryTimeout = 10

// Config holds all application configuration for the dispatch core.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Dispatch DispatchConfig
}

// ServerConfig holds server-specific configuration for the health/metrics listener.
type ServerConfig struct {
	Port        string
	Environment string
	ServiceName string
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int
	MinConns    int
	ServiceName string
	Breaker     DatabaseBreakerConfig
}

// DatabaseBreakerConfig guards database connectivity when upstream issues occur.
type DatabaseBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// DispatchConfig tunes the matcher, route planner, and concurrency mediator.
type DispatchConfig struct {
	ClusterRadiusKm      float64
	MaxPoolSize          int
	MatchTimeoutMs       int
	MaxDetourDegrees     float64
	LeaseTTLSeconds      int
	LeaseMaxRetries      int
	LeaseRetryDelayMs    int
	RetryMaxAttempts     int
	RetryBaseDelayMs     int
	MatchCycleIntervalMs int
	LeaseSweepIntervalMs int
	SurgeRefreshInterval int
	PendingBatchLimit    int
	FormingPoolMaxAgeMin int
}

// Load reads configuration from the environment, falling back to the
// defaults a local developer run needs. A .env file is loaded if present.
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			ServiceName: serviceName,
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "dispatch"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:    getEnvAsInt("DB_MIN_CONNS", 5),
			ServiceName: serviceName,
			Breaker: DatabaseBreakerConfig{
				Enabled:          getEnvAsBool("DB_BREAKER_ENABLED", true),
				FailureThreshold: getEnvAsInt("DB_BREAKER_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("DB_BREAKER_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("DB_BREAKER_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("DB_BREAKER_INTERVAL_SECONDS", 60),
			},
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Dispatch: DispatchConfig{
			ClusterRadiusKm:      getEnvAsFloat("DISPATCH_CLUSTER_RADIUS_KM", 5.0),
			MaxPoolSize:          getEnvAsInt("DISPATCH_MAX_POOL_SIZE", 4),
			MatchTimeoutMs:       getEnvAsInt("DISPATCH_MATCH_TIMEOUT_MS", 250),
			MaxDetourDegrees:     getEnvAsFloat("DISPATCH_DIRECTION_TOLERANCE_DEG", 45.0),
			LeaseTTLSeconds:      getEnvAsInt("DISPATCH_LEASE_TTL_SECONDS", 30),
			LeaseMaxRetries:      getEnvAsInt("DISPATCH_LEASE_MAX_RETRIES", 3),
			LeaseRetryDelayMs:    getEnvAsInt("DISPATCH_LEASE_RETRY_DELAY_MS", 50),
			RetryMaxAttempts:     getEnvAsInt("DISPATCH_RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelayMs:     getEnvAsInt("DISPATCH_RETRY_BASE_DELAY_MS", 100),
			MatchCycleIntervalMs: getEnvAsInt("DISPATCH_MATCH_CYCLE_INTERVAL_MS", 5000),
			LeaseSweepIntervalMs: getEnvAsInt("DISPATCH_LEASE_SWEEP_INTERVAL_MS", 60000),
			SurgeRefreshInterval: getEnvAsInt("DISPATCH_SURGE_REFRESH_INTERVAL_MS", 30000),
			PendingBatchLimit:    getEnvAsInt("DISPATCH_PENDING_BATCH_LIMIT", 100),
			FormingPoolMaxAgeMin: getEnvAsInt("DISPATCH_FORMING_POOL_MAX_AGE_MIN", 10),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// MatchTimeout returns the matcher's wall-clock budget as a duration.
func (c DispatchConfig) MatchTimeout() time.Duration {
	return time.Duration(c.MatchTimeoutMs) * time.Millisecond
}

// LeaseTTL returns the default pool lease duration.
func (c DispatchConfig) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
