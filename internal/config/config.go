// Package config loads service configuration from a TOML file, a .env file
// and LEDGER_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "LEDGER_"

type Config struct {
	HTTP    HTTPConfig    `toml:"http"`
	Storage StorageConfig `toml:"storage"`
	Redis   RedisConfig   `toml:"redis"`
	Kafka   KafkaConfig   `toml:"kafka"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

type HTTPConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for net.Listen.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// StorageConfig selects the ledger backend.
// Backend is one of memory, file, sqlite, postgres, mysql, redis.
type StorageConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"` // snapshot file for the file backend
	DSN     string `toml:"dsn"`  // connection string for sql backends
}

type RedisConfig struct {
	Addrs      []string `toml:"addrs"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	UseCluster bool     `toml:"use_cluster"`
	Prefix     string   `toml:"prefix"`
}

// KafkaConfig enables the data-changed relay when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

var backends = []string{"memory", "file", "sqlite", "postgres", "mysql", "redis"}

// DefaultConfig returns the defaults used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{Host: "127.0.0.1", Port: 8080},
		Storage: StorageConfig{
			Backend: "file",
			Path:    "data/ledger.json",
		},
		Redis: RedisConfig{
			Addrs:  []string{"localhost:6379"},
			Prefix: "ledger",
		},
		Kafka: KafkaConfig{Topic: "ledger.data_changed"},
		Log:   LogConfig{Level: "info"},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// LEDGER_CONFIG is consulted; a missing .env file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTP.Host = getEnv("HTTP_HOST", c.HTTP.Host)
	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Path = getEnv("STORAGE_PATH", c.Storage.Path)
	c.Storage.DSN = getEnv("STORAGE_DSN", c.Storage.DSN)
	c.Redis.Addrs = getEnvAsList("REDIS_ADDRS", c.Redis.Addrs)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.Prefix = getEnv("REDIS_PREFIX", c.Redis.Prefix)
	c.Kafka.Brokers = getEnvAsList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	var err error
	if c.HTTP.Port, err = getEnvAsInt("HTTP_PORT", c.HTTP.Port); err != nil {
		return err
	}
	if c.Redis.DB, err = getEnvAsInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.Redis.UseCluster, err = getEnvAsBool("REDIS_USE_CLUSTER", c.Redis.UseCluster); err != nil {
		return err
	}
	if c.Log.Development, err = getEnvAsBool("LOG_DEVELOPMENT", c.Log.Development); err != nil {
		return err
	}
	if c.Metrics.Enabled, err = getEnvAsBool("METRICS_ENABLED", c.Metrics.Enabled); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	known := false
	for _, b := range backends {
		if c.Storage.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("storage.backend %q must be one of %s", c.Storage.Backend, strings.Join(backends, ", "))
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the file backend")
		}
	case "sqlite", "postgres", "mysql":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %s backend", c.Storage.Backend)
		}
	case "redis":
		if len(c.Redis.Addrs) == 0 {
			return errors.New("redis.addrs is required for the redis backend")
		}
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return b, nil
}

func getEnvAsList(key string, fallback []string) []string {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
