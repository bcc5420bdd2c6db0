package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	// Reset viper state
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Test server defaults
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Server.ReadTimeoutSeconds)
	assert.Equal(t, 30, cfg.Server.WriteTimeoutSeconds)
	assert.Equal(t, 120, cfg.Server.IdleTimeoutSeconds)
	assert.Equal(t, 20, cfg.Server.RateLimitPerSecond)
	assert.Equal(t, 40, cfg.Server.RateLimitBurst)

	// Test database defaults
	assert.Equal(t, "./data/shelfarr.db", cfg.Database.Path)

	// Test Redis defaults
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	// Test log defaults
	assert.Equal(t, "info", cfg.Log.Level)

	// Test auth defaults
	assert.Equal(t, "change-me-in-production", cfg.Auth.JWTSecret)
	assert.Equal(t, 24, cfg.Auth.TokenDuration)
	assert.Equal(t, "admin", cfg.Auth.Username)
	assert.Equal(t, "", cfg.Auth.Password)

	// Test monitor defaults
	assert.Equal(t, 60, cfg.Monitor.IntervalSeconds)
	assert.Equal(t, 300, cfg.Monitor.HealthCheckSeconds)
	assert.Equal(t, 10, cfg.Monitor.MaxJitterPercent)
	assert.Equal(t, 120, cfg.Monitor.SweepLockTTLSeconds)

	// Test encryption defaults
	assert.Equal(t, "", cfg.Encryption.Passphrase)

	// Test library defaults
	assert.Equal(t, "./library", cfg.Library.Path)
	assert.Contains(t, cfg.Library.ImportExtensions, ".epub")
}

func TestConfigFromFile(t *testing.T) {
	// Create temporary config file
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
environment: "test"
server:
  port: 9090
  host: "127.0.0.1"
  rate_limit_per_second: 5
  rate_limit_burst: 10

database:
  path: "/tmp/test.db"

redis:
  host: "redis-server"
  port: 6380
  password: "secret"
  db: 1

log:
  level: "debug"

auth:
  jwt_secret: "test-secret"
  token_duration: 48
  username: "operator"
  password: "hunter2"

monitor:
  interval_seconds: 15
  sweep_lock_ttl_seconds: 30

encryption:
  passphrase: "a strong phrase"

library:
  path: "/mnt/books"
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	require.NoError(t, err)

	// Reset viper and set config path
	viper.Reset()
	viper.AddConfigPath(tempDir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Test that file values override defaults
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 5, cfg.Server.RateLimitPerSecond)
	assert.Equal(t, 10, cfg.Server.RateLimitBurst)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "redis-server", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 48, cfg.Auth.TokenDuration)
	assert.Equal(t, "operator", cfg.Auth.Username)
	assert.Equal(t, "hunter2", cfg.Auth.Password)
	assert.Equal(t, 15, cfg.Monitor.IntervalSeconds)
	assert.Equal(t, 30, cfg.Monitor.SweepLockTTLSeconds)
	assert.Equal(t, "a strong phrase", cfg.Encryption.Passphrase)
	assert.Equal(t, "/mnt/books", cfg.Library.Path)
}

func TestConfigFromEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"SHELFARR_ENVIRONMENT":              "production",
		"SHELFARR_SERVER_PORT":              "8090",
		"SHELFARR_DATABASE_PATH":            "/data/prod.db",
		"SHELFARR_REDIS_HOST":               "redis.example.com",
		"SHELFARR_REDIS_PASSWORD":           "redispass",
		"SHELFARR_LOG_LEVEL":                "warn",
		"SHELFARR_AUTH_JWT_SECRET":          "super-secret-key",
		"SHELFARR_AUTH_USERNAME":            "prod-admin",
		"SHELFARR_MONITOR_INTERVAL_SECONDS": "30",
		"SHELFARR_ENCRYPTION_PASSPHRASE":    "prod phrase",
	}

	for key, value := range envVars {
		os.Setenv(key, value)
	}

	t.Cleanup(func() {
		for key := range envVars {
			os.Unsetenv(key)
		}
	})

	// Reset viper state
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Test that environment variables override defaults
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "/data/prod.db", cfg.Database.Path)
	assert.Equal(t, "redis.example.com", cfg.Redis.Host)
	assert.Equal(t, "redispass", cfg.Redis.Password)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "super-secret-key", cfg.Auth.JWTSecret)
	assert.Equal(t, "prod-admin", cfg.Auth.Username)
	assert.Equal(t, 30, cfg.Monitor.IntervalSeconds)
	assert.Equal(t, "prod phrase", cfg.Encryption.Passphrase)
}

func TestConfigFileNotFound(t *testing.T) {
	// Reset viper and set a non-existent config path
	viper.Reset()
	viper.AddConfigPath("/non/existent/path")

	// Should not error when config file is not found, should use defaults
	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use default values
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8787, cfg.Server.Port)
}

func TestConfigInvalidYaml(t *testing.T) {
	// Create temporary config file with invalid YAML
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	invalidYaml := `
server:
  port: 8787
  invalid yaml here [[[
database:
  path: /tmp/test.db
`

	err := os.WriteFile(configFile, []byte(invalidYaml), 0644)
	require.NoError(t, err)

	// Reset viper and set config path
	viper.Reset()
	viper.AddConfigPath(tempDir)

	// Should return error for invalid YAML
	_, err = Load()
	require.Error(t, err)
}

func TestConfigMixedSources(t *testing.T) {
	// Test that environment variables override file values
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
server:
  port: 8787
  host: "localhost"
database:
  path: "/tmp/file.db"
redis:
  host: "localhost"
  port: 6379
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	require.NoError(t, err)

	os.Setenv("SHELFARR_SERVER_PORT", "9090")
	os.Setenv("SHELFARR_REDIS_HOST", "redis-server")

	t.Cleanup(func() {
		os.Unsetenv("SHELFARR_SERVER_PORT")
		os.Unsetenv("SHELFARR_REDIS_HOST")
	})

	// Reset viper and set config path
	viper.Reset()
	viper.AddConfigPath(tempDir)

	cfg, err := Load()
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, 9090, cfg.Server.Port)             // overridden by env var
	assert.Equal(t, "localhost", cfg.Server.Host)      // from file
	assert.Equal(t, "/tmp/file.db", cfg.Database.Path) // from file
	assert.Equal(t, "redis-server", cfg.Redis.Host)    // overridden by env var
	assert.Equal(t, 6379, cfg.Redis.Port)              // from file
}
