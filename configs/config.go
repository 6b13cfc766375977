package configs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hotvideos/video-info-service/internal/core/domain/video"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Server   ServerConfig
	Cache    CacheConfig
	Backend  BackendConfig
	DynamoDB DynamoDBConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

// CacheConfig bounds the in-process video info cache.
type CacheConfig struct {
	MaxSizeBytes   int64
	MaxAge         time.Duration
	FetchTimeout   time.Duration
	CoalesceMisses bool
}

type BackendConfig struct {
	Driver string // dynamodb, postgres or redis
}

type DynamoDBConfig struct {
	Region          string
	Endpoint        string
	Table           string
	KeyAttribute    string
	ValueAttribute  string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	MaxAttempts     int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	KeyPrefix string
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	maxSize, sizeErr := getStrictInt64Env("CACHE_MAX_SIZE_BYTES", 1048576)
	maxAgeMillis, ageErr := getStrictInt64Env("CACHE_MAX_AGE_MILLIS", 60000)
	if err := errors.Join(sizeErr, ageErr); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", getEnv("IP", "0.0.0.0")),
			Port:         getEnv("SERVER_PORT", getEnv("PORT", "8080")),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:  getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:   getEnv("TLS_KEY_FILE", ""),
		},
		Cache: CacheConfig{
			MaxSizeBytes:   maxSize,
			MaxAge:         time.Duration(maxAgeMillis) * time.Millisecond,
			FetchTimeout:   getDurationEnv("CACHE_FETCH_TIMEOUT", 5*time.Second),
			CoalesceMisses: getBoolEnv("CACHE_COALESCE_MISSES", true),
		},
		Backend: BackendConfig{
			Driver: strings.ToLower(getEnv("BACKEND_DRIVER", BackendDynamoDB)),
		},
		DynamoDB: DynamoDBConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""),
			Table:           getEnv("DYNAMODB_TABLE", "hot_oculus_videos"),
			KeyAttribute:    getEnv("DYNAMODB_KEY_ATTRIBUTE", "sort_type"),
			ValueAttribute:  getEnv("DYNAMODB_VALUE_ATTRIBUTE", "video_info"),
			AccessKeyID:     getEnv("DYNAMODB_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("DYNAMODB_SECRET_ACCESS_KEY", ""),
			SessionToken:    getEnv("DYNAMODB_SESSION_TOKEN", ""),
			MaxAttempts:     getIntEnv("DYNAMODB_MAX_ATTEMPTS", 1),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "videos"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "./migrations"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "videoinfo"),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Build database DSN
	cfg.Database.DSN = fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Cache.MaxSizeBytes <= 0 {
		return fmt.Errorf("%w: CACHE_MAX_SIZE_BYTES must be positive, got %d", video.ErrInvalidConfiguration, c.Cache.MaxSizeBytes)
	}
	if c.Cache.MaxAge <= 0 {
		return fmt.Errorf("%w: CACHE_MAX_AGE_MILLIS must be positive, got %s", video.ErrInvalidConfiguration, c.Cache.MaxAge)
	}
	switch c.Backend.Driver {
	case BackendDynamoDB:
		if c.DynamoDB.Table == "" || c.DynamoDB.KeyAttribute == "" || c.DynamoDB.ValueAttribute == "" {
			return fmt.Errorf("%w: DynamoDB table, key attribute and value attribute are required", video.ErrInvalidConfiguration)
		}
	case BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown BACKEND_DRIVER %q", video.ErrInvalidConfiguration, c.Backend.Driver)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getStrictInt64Env rejects values that do not parse instead of falling back to the default.
func getStrictInt64Env(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", video.ErrInvalidConfiguration, key, value)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
