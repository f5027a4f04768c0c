// Package config loads storefront settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"

	RemotePostgres = "postgres"
	RemoteMemory   = "memory"
)

type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Remote  RemoteConfig  `yaml:"remote"`
	Catalog CatalogConfig `yaml:"catalog"`
	Events  EventsConfig  `yaml:"events"`
	Tracing TracingConfig `yaml:"tracing"`
}

type HTTPConfig struct {
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	// AdminEmails may list all orders and change order status over the API.
	AdminEmails []string `yaml:"admin_emails"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	Env       string `yaml:"env"`
	AddSource bool   `yaml:"add_source"`
}

// StorageConfig selects where device state (cart, auth session) lives.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	// SQLitePath is the database file; ":memory:" keeps nothing across runs.
	SQLitePath    string `yaml:"sqlite_path"`
	MigrationsDir string `yaml:"migrations_dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPrefix   string `yaml:"redis_prefix"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type RemoteConfig struct {
	Driver   string         `yaml:"driver"`
	Postgres PostgresConfig `yaml:"postgres"`
	Breaker  BreakerConfig  `yaml:"breaker"`
}

type PostgresConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	DBName        string `yaml:"dbname"`
	SSLMode       string `yaml:"sslmode"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
	Interval         time.Duration `yaml:"interval"`
}

// CatalogConfig enables the Redis catalog cache when CacheRedisAddr is set.
type CatalogConfig struct {
	CacheRedisAddr string        `yaml:"cache_redis_addr"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// EventsConfig enables order event publishing when brokers are set.
type EventsConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TracingConfig struct {
	// Endpoint is the OTLP gRPC collector; empty disables export.
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:               "8080",
			RequestTimeout:     30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			MaxRequestBodySize: 1 << 20, // 1MB
		},
		Log: LogConfig{
			Level: "info",
			Env:   "development",
		},
		Storage: StorageConfig{
			Driver:        StorageSQLite,
			SQLitePath:    "storefront.db",
			MigrationsDir: "internal/storage/migrations",
			RedisAddr:     "localhost:6379",
			RedisPrefix:   "storefront",
			MongoDatabase: "storefront",
		},
		Remote: RemoteConfig{
			Driver: RemoteMemory,
			Postgres: PostgresConfig{
				Host:          "localhost",
				Port:          5432,
				User:          "postgres",
				DBName:        "storefront",
				SSLMode:       "disable",
				MigrationsDir: "internal/repository/migrations",
			},
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Timeout:          30 * time.Second,
				Interval:         time.Minute,
			},
		},
		Catalog: CatalogConfig{
			CacheTTL: 5 * time.Minute,
		},
		Events: EventsConfig{
			Topic: "order-events",
		},
		Tracing: TracingConfig{
			ServiceName: "storefront",
			SampleRatio: 1,
		},
	}
}

// Load reads path when it is non-empty, then applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides file values with any environment variables that are set.
func (c *Config) ApplyEnv() {
	c.HTTP.Port = getEnv("HTTP_PORT", c.HTTP.Port)
	c.Log.Level = getEnv("STOREFRONT_LOG_LEVEL", c.Log.Level)
	c.Log.Env = getEnv("STOREFRONT_ENV", c.Log.Env)

	if admins := getEnv("STOREFRONT_ADMIN_EMAILS", ""); admins != "" {
		c.HTTP.AdminEmails = splitList(admins)
	}

	c.Storage.Driver = getEnv("STOREFRONT_STORAGE", c.Storage.Driver)
	c.Storage.SQLitePath = getEnv("STOREFRONT_SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.RedisAddr = getEnv("REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.MongoURI = getEnv("MONGO_URI", c.Storage.MongoURI)

	c.Remote.Driver = getEnv("STOREFRONT_REMOTE", c.Remote.Driver)
	pg := &c.Remote.Postgres
	pg.Host = getEnv("POSTGRES_HOST", pg.Host)
	pg.Port = getEnvInt("POSTGRES_PORT", pg.Port)
	pg.User = getEnv("POSTGRES_USER", pg.User)
	pg.Password = getEnv("POSTGRES_PASSWORD", pg.Password)
	pg.DBName = getEnv("POSTGRES_DB", pg.DBName)
	pg.SSLMode = getEnv("POSTGRES_SSLMODE", pg.SSLMode)

	c.Catalog.CacheRedisAddr = getEnv("CATALOG_CACHE_REDIS_ADDR", c.Catalog.CacheRedisAddr)

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Events.Brokers = splitList(brokers)
	}
	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
}

func (c *Config) Validate() error {
	if c.HTTP.Port == "" {
		return fmt.Errorf("http.port is required")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("http.request_timeout must be positive")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis driver")
		}
	case StorageMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Remote.Driver {
	case RemoteMemory:
	case RemotePostgres:
		if c.Remote.Postgres.Host == "" || c.Remote.Postgres.DBName == "" {
			return fmt.Errorf("remote.postgres host and dbname are required")
		}
	default:
		return fmt.Errorf("unknown remote driver %q", c.Remote.Driver)
	}

	if c.Catalog.CacheRedisAddr != "" && c.Catalog.CacheTTL <= 0 {
		return fmt.Errorf("catalog.cache_ttl must be positive when the cache is enabled")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
