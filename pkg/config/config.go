// Package config handles graphopt configuration via environment variables.
//
// All settings are read from GRAPHOPT_-prefixed environment variables with
// sensible defaults, so LoadFromEnv() works with nothing set. Validate()
// catches logical errors before the pipeline starts.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
//	fmt.Printf("store: %s, cache enabled: %v\n",
//		cfg.Store.Backend, cfg.Cache.Enabled)
//
// Environment Variables:
//
//	Cache:
//	- GRAPHOPT_CACHE_ENABLED=true
//	- GRAPHOPT_CACHE_PREFIX="graph:query_result"
//	- GRAPHOPT_CACHE_ENCRYPTION_ENABLED=false
//	- GRAPHOPT_CACHE_ENCRYPTION_PASSPHRASE="..."
//
//	Store:
//	- GRAPHOPT_STORE_BACKEND="memory" or "badger"
//	- GRAPHOPT_STORE_PATH="./data/cache"
//
//	Rewriter:
//	- GRAPHOPT_REWRITE_ADD_LIMIT=true
//	- GRAPHOPT_REWRITE_ROW_LIMIT=1000
//	- GRAPHOPT_REWRITE_INDEX_HINTS=true
//
//	Advisor / Analyzer:
//	- GRAPHOPT_INDEX_REGISTRY="./indexes.yaml"
//	- GRAPHOPT_ANALYZER_MEMO_SIZE=1024
//
//	Logging:
//	- GRAPHOPT_LOG_LEVEL="info"
//	- GRAPHOPT_LOG_FORMAT="json" or "text"
//
// Configuration Priority:
//  1. Environment variables (highest)
//  2. Default values (if env var not set)
//  3. No config files for settings (environment-only; the index registry
//     referenced by GRAPHOPT_INDEX_REGISTRY is data, not configuration)
//
// Thread Safety:
//
//	LoadFromEnv reads environment variables which are process-global and
//	should not be modified after startup. The returned Config is immutable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds all graphopt configuration loaded from environment variables.
//
// Configuration is organized into logical sections:
//   - Cache: result cache behavior and at-rest encryption
//   - Store: the backing key-value store
//   - Rewriter: query rewrite rule toggles
//   - Advisor: index registry location
//   - Analyzer: memoization bounds
//   - Logging: log level and format
type Config struct {
	Cache    CacheConfig
	Store    StoreConfig
	Rewriter RewriterConfig
	Advisor  AdvisorConfig
	Analyzer AnalyzerConfig
	Logging  LoggingConfig
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	// Enabled controls whether query results are cached at all
	Enabled bool
	// Prefix namespaces all cache keys
	Prefix string
	// EncryptionEnabled seals cached values at rest
	EncryptionEnabled bool
	// EncryptionPassphrase derives the sealing key; required when
	// encryption is enabled
	EncryptionPassphrase string
}

// StoreConfig holds key-value store settings.
type StoreConfig struct {
	// Backend selects the store implementation ("memory" or "badger")
	Backend string
	// Path is the on-disk location for the badger backend
	Path string
}

// RewriterConfig holds rewrite rule toggles.
type RewriterConfig struct {
	// AddLimit injects a LIMIT into unbounded wildcard queries
	AddLimit bool
	// RowLimit is the injected bound
	RowLimit int64
	// IndexHints attaches index-seek execution hints
	IndexHints bool
}

// AdvisorConfig holds index advisor settings.
type AdvisorConfig struct {
	// RegistryPath points at a YAML file listing known indexes.
	// Empty means no registry is loaded.
	RegistryPath string
}

// AnalyzerConfig holds analyzer settings.
type AnalyzerConfig struct {
	// MemoSize bounds the analysis memoization table (0 = default)
	MemoSize int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is a logrus level name (trace, debug, info, warn, error)
	Level string
	// Format is "json" or "text"
	Format string
	// QueryLogEnabled logs every optimized query at debug level
	QueryLogEnabled bool
	// SlowQueryThreshold for flagging slow live executions
	SlowQueryThreshold time.Duration
}

// Store backends.
const (
	StoreBackendMemory = "memory"
	StoreBackendBadger = "badger"
)

// LoadFromEnv loads configuration from environment variables.
//
// All values have defaults, so LoadFromEnv() can be called without any
// environment variables set. Call Validate() before use.
func LoadFromEnv() *Config {
	config := &Config{}

	// Cache settings
	config.Cache.Enabled = getEnvBool("GRAPHOPT_CACHE_ENABLED", true)
	config.Cache.Prefix = getEnv("GRAPHOPT_CACHE_PREFIX", "graph:query_result")
	config.Cache.EncryptionEnabled = getEnvBool("GRAPHOPT_CACHE_ENCRYPTION_ENABLED", false)
	config.Cache.EncryptionPassphrase = getEnv("GRAPHOPT_CACHE_ENCRYPTION_PASSPHRASE", "")

	// Store settings
	config.Store.Backend = strings.ToLower(getEnv("GRAPHOPT_STORE_BACKEND", StoreBackendMemory))
	config.Store.Path = getEnv("GRAPHOPT_STORE_PATH", "./data/cache")

	// Rewriter settings
	config.Rewriter.AddLimit = getEnvBool("GRAPHOPT_REWRITE_ADD_LIMIT", true)
	config.Rewriter.RowLimit = int64(getEnvInt("GRAPHOPT_REWRITE_ROW_LIMIT", 1000))
	config.Rewriter.IndexHints = getEnvBool("GRAPHOPT_REWRITE_INDEX_HINTS", true)

	// Advisor / analyzer settings
	config.Advisor.RegistryPath = getEnv("GRAPHOPT_INDEX_REGISTRY", "")
	config.Analyzer.MemoSize = getEnvInt("GRAPHOPT_ANALYZER_MEMO_SIZE", 1024)

	// Logging settings
	config.Logging.Level = getEnv("GRAPHOPT_LOG_LEVEL", "info")
	config.Logging.Format = getEnv("GRAPHOPT_LOG_FORMAT", "json")
	config.Logging.QueryLogEnabled = getEnvBool("GRAPHOPT_QUERY_LOG_ENABLED", false)
	config.Logging.SlowQueryThreshold = getEnvDuration("GRAPHOPT_SLOW_QUERY_THRESHOLD", 5*time.Second)

	return config
}

// Validate checks the configuration for logical errors and invalid values.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("badger backend requires GRAPHOPT_STORE_PATH")
		}
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}

	if c.Cache.EncryptionEnabled && c.Cache.EncryptionPassphrase == "" {
		return fmt.Errorf("cache encryption enabled but no passphrase provided")
	}

	if c.Rewriter.RowLimit <= 0 {
		return fmt.Errorf("invalid rewrite row limit: %d", c.Rewriter.RowLimit)
	}

	if c.Analyzer.MemoSize < 0 {
		return fmt.Errorf("invalid analyzer memo size: %d", c.Analyzer.MemoSize)
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}

	return nil
}

// BuildLogger constructs a logrus logger from the logging section.
// Unknown levels fall back to info.
func (c *Config) BuildLogger() *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(c.Logging.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

// String returns a safe string representation of the Config.
//
// Sensitive values like passphrases are NOT included in the output,
// making this safe for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Cache: %v, Encryption: %v, Store: %s, RowLimit: %d}",
		c.Cache.Enabled,
		c.Cache.EncryptionEnabled,
		c.Store.Backend,
		c.Rewriter.RowLimit,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Try parsing as seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
