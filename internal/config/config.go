// Package config loads pointd configuration from defaults, optional YAML
// files and POINTD_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. POINTD_SERVER_PORT.
const EnvPrefix = "POINTD"

// DefaultConfigPaths are probed when Load is called without paths.
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config/config.yaml",
	"/etc/pointd/config.yaml",
}

// Storage backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// Config represents the application configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Points   PointsConfig   `mapstructure:"points"`
	Events   EventsConfig   `mapstructure:"events"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory postgres sqlite redis"`
}

type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PointsConfig tunes the mutation engine
type PointsConfig struct {
	LockTimeout       time.Duration `mapstructure:"lock_timeout" validate:"gt=0"`
	RegistryThreshold int           `mapstructure:"registry_threshold" validate:"gt=0"`
	LockEviction      string        `mapstructure:"lock_eviction" validate:"oneof=clear refcount"`
	PreCheck          bool          `mapstructure:"precheck"`

	// Simulated latency of the memory backend, zero disables it.
	StoreLatencyMin time.Duration `mapstructure:"store_latency_min"`
	StoreLatencyMax time.Duration `mapstructure:"store_latency_max" validate:"gtefield=StoreLatencyMin"`
}

type EventsConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
	RedisStream  string   `mapstructure:"redis_stream"`

	// PublishTimeout bounds the wait on one event after a committed mutation.
	PublishTimeout time.Duration `mapstructure:"publish_timeout" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("storage.backend", BackendMemory)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("sqlite.path", "pointd.db")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("points.lock_timeout", time.Second)
	v.SetDefault("points.registry_threshold", 1000)
	v.SetDefault("points.lock_eviction", "clear")
	v.SetDefault("points.precheck", true)
	v.SetDefault("points.store_latency_min", time.Duration(0))
	v.SetDefault("points.store_latency_max", time.Duration(0))

	v.SetDefault("events.kafka_brokers", []string{})
	v.SetDefault("events.kafka_topic", "point.events")
	v.SetDefault("events.redis_stream", "")
	v.SetDefault("events.publish_timeout", 2*time.Second)
}

// Load reads the configuration. Missing files are skipped; a file that exists
// but cannot be parsed is an error.
func Load(configPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if len(configPaths) == 0 {
		configPaths = DefaultConfigPaths
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.Storage.Backend == BackendPostgres && c.Database.DSN == "" {
		return fmt.Errorf("validation failed: database.dsn is required for the postgres backend")
	}
	return nil
}
