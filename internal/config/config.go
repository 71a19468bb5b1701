// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Security  SecurityConfig
	Remote    RemoteConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"CADBRIDGE_HOST" default:"0.0.0.0"`
	Port string `envconfig:"CADBRIDGE_PORT" default:"8100"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"CADBRIDGE_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"CADBRIDGE_LOG_DEV" default:"false"`
}

// SecurityConfig holds the script security policy source.
//
// Mode is matched case-insensitively; any value other than "sandboxed" falls
// back to unrestricted. BlockedPaths are merged with the platform defaults,
// AllowedWritePaths replace the defaults entirely when set. Both lists are
// semicolon-separated glob patterns and may use the ~ and ${TEMP}
// placeholders.
type SecurityConfig struct {
	Mode              string `envconfig:"CADBRIDGE_SECURITY" default:"unrestricted"`
	BlockedPaths      string `envconfig:"CADBRIDGE_BLOCKED_PATHS" default:""`
	AllowedWritePaths string `envconfig:"CADBRIDGE_ALLOWED_WRITE_PATHS" default:""`
}

// RemoteConfig holds instance discovery and transport configuration.
type RemoteConfig struct {
	ScanPortStart  int           `envconfig:"CADBRIDGE_SCAN_PORT_START" default:"19723"`
	ScanPortEnd    int           `envconfig:"CADBRIDGE_SCAN_PORT_END" default:"19743"`
	AddOnNamespace string        `envconfig:"CADBRIDGE_ADDON_NAMESPACE" default:"AutomationCommand"`
	ProbeTimeout   time.Duration `envconfig:"CADBRIDGE_PROBE_TIMEOUT" default:"1s"`
	CommandTimeout time.Duration `envconfig:"CADBRIDGE_COMMAND_TIMEOUT" default:"30s"`
}

// RateLimitConfig holds per-IP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"CADBRIDGE_RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"CADBRIDGE_RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"CADBRIDGE_RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8100",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Security: SecurityConfig{
			Mode: "unrestricted",
		},
		Remote: RemoteConfig{
			ScanPortStart:  19723,
			ScanPortEnd:    19743,
			AddOnNamespace: "AutomationCommand",
			ProbeTimeout:   time.Second,
			CommandTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
