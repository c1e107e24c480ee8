package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/realdiag-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v           *viper.Viper
	configPaths []string
	config      *domain.Config
}

// DefaultConfigPaths are searched in order for config.yaml.
var DefaultConfigPaths = []string{".", "./config", "/etc/realdiag/"}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithPaths(DefaultConfigPaths...)
}

// NewManagerWithPaths creates a manager that searches only the given directories.
func NewManagerWithPaths(paths ...string) (*Manager, error) {
	m := &Manager{configPaths: paths}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	// Set configuration file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range m.configPaths {
		v.AddConfigPath(p)
	}

	// Set environment variable prefix and enable automatic env binding
	v.SetEnvPrefix("REALDIAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("app.name", domain.AppName)
	v.SetDefault("app.version", domain.AppVersion)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	// Knowledge base defaults
	v.SetDefault("knowledge.rules_dir", "knowledge/rules")
	v.SetDefault("knowledge.trees_dir", "knowledge/trees")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Feedback defaults
	v.SetDefault("feedback.driver", "sqlite")
	v.SetDefault("feedback.sqlite_path", "data/feedback.db")
	v.SetDefault("feedback.postgres_url", "")
	v.SetDefault("feedback.migrate", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit: %v", config.Server.RateLimit)
	}
	if m.IsProduction() {
		for _, origin := range config.Server.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("wildcard CORS origin is not allowed in production")
			}
		}
	}

	if config.Knowledge.RulesDir == "" || config.Knowledge.TreesDir == "" {
		return fmt.Errorf("knowledge rules_dir and trees_dir are required")
	}

	if config.Cache.Enabled && config.Cache.MaxItems <= 0 {
		return fmt.Errorf("cache max_items must be positive when the cache is enabled")
	}

	switch config.Feedback.Driver {
	case "sqlite":
		if config.Feedback.SQLitePath == "" {
			return fmt.Errorf("feedback sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if config.Feedback.PostgresURL == "" {
			return fmt.Errorf("feedback postgres_url is required for the postgres driver")
		}
	case "none":
	default:
		return fmt.Errorf("invalid feedback driver: %s", config.Feedback.Driver)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
