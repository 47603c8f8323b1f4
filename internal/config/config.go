// Package config loads the server configuration from YAML with
// environment overrides (MAILDESK_ prefix).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Retention RetentionConfig `mapstructure:"retention"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	BaseURL string `mapstructure:"base_url"`
}

type WebhookConfig struct {
	// Secret enables HMAC verification of the x-webhook-signature
	// header. Leaving it empty disables verification; the server warns
	// about that at startup.
	Secret string `mapstructure:"secret"`
}

type MatchingConfig struct {
	// SubjectWindow bounds the heuristic fallback: only tickets active
	// within this window are candidates for subject matching.
	SubjectWindow time.Duration `mapstructure:"subject_window"`
}

type RetentionConfig struct {
	WebhookLogTTL time.Duration `mapstructure:"webhook_log_ttl"`
	Schedule      string        `mapstructure:"schedule"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads the configuration file (optional) and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MAILDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/maildesk")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "maildesk")
	v.SetDefault("app.env", "development")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "postgres")
	// Registered so env-only overrides bind during Unmarshal.
	v.SetDefault("database.dsn", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.base_url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.dedup_ttl", 72*time.Hour)
	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.path", "./data/attachments")
	v.SetDefault("matching.subject_window", 30*24*time.Hour)
	v.SetDefault("retention.webhook_log_ttl", 90*24*time.Hour)
	v.SetDefault("retention.schedule", "0 3 * * *")
	v.SetDefault("metrics.enabled", true)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite3" {
		return fmt.Errorf("config: database.driver must be postgres or sqlite3, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch c.Storage.Backend {
	case "", "filesystem", "database":
	default:
		return fmt.Errorf("config: storage.backend must be filesystem or database, got %q", c.Storage.Backend)
	}
	if c.Matching.SubjectWindow <= 0 {
		return fmt.Errorf("config: matching.subject_window must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
