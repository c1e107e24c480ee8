package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Feedback  FeedbackConfig  `mapstructure:"feedback"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AppConfig names the service in /version responses
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per client, 0 disables
	RateBurst      int           `mapstructure:"rate_burst"`
}

// KnowledgeConfig locates the rule and tree documents
type KnowledgeConfig struct {
	RulesDir string `mapstructure:"rules_dir"`
	TreesDir string `mapstructure:"trees_dir"`
}

// CacheConfig represents result cache configuration
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxItems    int           `mapstructure:"max_items"`
	TTL         time.Duration `mapstructure:"ttl"`
	RedisURL    string        `mapstructure:"redis_url"` // empty keeps the cache in memory only
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// FeedbackConfig selects the clinician feedback store
type FeedbackConfig struct {
	Driver      string `mapstructure:"driver"` // "sqlite", "postgres" or "none"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
	Migrate     bool   `mapstructure:"migrate"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
