// Package config provides configuration management for the RealDiag binaries.
// This file contains the lightweight configuration used by the MCP server and
// the command line tool.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir  string // Base directory for data files
	RulesDir string // Rule family documents
	TreesDir string // Decision tree documents

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".realdiag")

	return &LiteConfig{
		DataDir:       dataDir,
		RulesDir:      filepath.Join(dataDir, "rules"),
		TreesDir:      filepath.Join(dataDir, "trees"),
		CacheMaxItems: 1000,
		CacheTTL:      time.Hour,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set. Unset knowledge directories follow
// the data directory.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data directory
	if v := os.Getenv("REALDIAG_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.RulesDir = filepath.Join(v, "rules")
		cfg.TreesDir = filepath.Join(v, "trees")
	}
	if v := os.Getenv("REALDIAG_RULES_DIR"); v != "" {
		cfg.RulesDir = v
	}
	if v := os.Getenv("REALDIAG_TREES_DIR"); v != "" {
		cfg.TreesDir = v
	}

	// Cache settings
	if v := os.Getenv("REALDIAG_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("REALDIAG_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// Logging
	if v := os.Getenv("REALDIAG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REALDIAG_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// FeedbackDBPath returns the path to the feedback SQLite database.
func (c *LiteConfig) FeedbackDBPath() string {
	return filepath.Join(c.DataDir, "feedback.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
