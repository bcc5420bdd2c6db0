package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Log         LogConfig        `mapstructure:"log"`
	Auth        AuthConfig       `mapstructure:"auth"`
	Monitor     MonitorConfig    `mapstructure:"monitor"`
	Encryption  EncryptionConfig `mapstructure:"encryption"`
	Library     LibraryConfig    `mapstructure:"library"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port                int    `mapstructure:"port"`
	Host                string `mapstructure:"host"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `mapstructure:"idle_timeout_seconds"`
	RateLimitPerSecond  int    `mapstructure:"rate_limit_per_second"`
	RateLimitBurst      int    `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenDuration int    `mapstructure:"token_duration"` // in hours
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
}

// MonitorConfig contains download monitor configuration
type MonitorConfig struct {
	IntervalSeconds     int `mapstructure:"interval_seconds"`
	HealthCheckSeconds  int `mapstructure:"health_check_seconds"`
	MaxJitterPercent    int `mapstructure:"max_jitter_percent"`
	SweepLockTTLSeconds int `mapstructure:"sweep_lock_ttl_seconds"`
}

// EncryptionConfig contains credential encryption configuration
type EncryptionConfig struct {
	// Passphrase enables encryption of stored client credentials when
	// non-empty. Clearing it after credentials exist makes them unreadable.
	Passphrase string `mapstructure:"passphrase"`
}

// LibraryConfig contains book library configuration
type LibraryConfig struct {
	Path             string   `mapstructure:"path"`
	ImportExtensions []string `mapstructure:"import_extensions"`
}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("environment", "development")

	viper.SetDefault("server.port", 8787)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout_seconds", 30)
	viper.SetDefault("server.write_timeout_seconds", 30)
	viper.SetDefault("server.idle_timeout_seconds", 120)
	viper.SetDefault("server.rate_limit_per_second", 20)
	viper.SetDefault("server.rate_limit_burst", 40)

	viper.SetDefault("database.path", "./data/shelfarr.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("log.level", "info")

	viper.SetDefault("auth.jwt_secret", "change-me-in-production")
	viper.SetDefault("auth.token_duration", 24)
	viper.SetDefault("auth.username", "admin")
	viper.SetDefault("auth.password", "")

	viper.SetDefault("monitor.interval_seconds", 60)
	viper.SetDefault("monitor.health_check_seconds", 300)
	viper.SetDefault("monitor.max_jitter_percent", 10)
	viper.SetDefault("monitor.sweep_lock_ttl_seconds", 120)

	viper.SetDefault("encryption.passphrase", "")

	viper.SetDefault("library.path", "./library")
	viper.SetDefault("library.import_extensions", []string{".epub", ".mobi", ".azw3", ".pdf", ".cbz"})

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/shelfarr")

	// Environment variable settings
	viper.SetEnvPrefix("SHELFARR")
	viper.AutomaticEnv()

	// Set key replacer to handle nested keys
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read configuration file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, using defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
