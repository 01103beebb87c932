package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig
	Host      HostConfig
	Icons     IconsConfig
	Settings  SettingsConfig
	Relay     RelayConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the guest-facing HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"BRIDGE_PORT" default:"7420"`
	Host string `envconfig:"BRIDGE_HOST" default:"0.0.0.0"`
}

// HostConfig holds base URLs for the host-side collaborator daemons.
type HostConfig struct {
	CatalogAddr   string `envconfig:"CATALOG_ADDR" default:"http://127.0.0.1:7421"`
	InstallerAddr string `envconfig:"INSTALLER_ADDR" default:"http://127.0.0.1:7422"`
	MonitorAddr   string `envconfig:"MONITOR_ADDR" default:"http://127.0.0.1:7423"`
}

// IconsConfig holds the icon cache configuration.
type IconsConfig struct {
	Dir string `envconfig:"ICONS_DIR" default:"/var/lib/appbridge/icons"`
}

// SettingsConfig holds the settings store configuration.
type SettingsConfig struct {
	DBPath string `envconfig:"SETTINGS_DB" default:"/var/lib/appbridge/settings.db"`
}

// RelayConfig holds the event relay configuration.
type RelayConfig struct {
	QueueSize      int `envconfig:"RELAY_QUEUE_SIZE" default:"256"`
	EnqueueTimeout int `envconfig:"RELAY_ENQUEUE_TIMEOUT_MS" default:"250"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
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
			Port: "7420",
			Host: "0.0.0.0",
		},
		Host: HostConfig{
			CatalogAddr:   "http://127.0.0.1:7421",
			InstallerAddr: "http://127.0.0.1:7422",
			MonitorAddr:   "http://127.0.0.1:7423",
		},
		Icons: IconsConfig{
			Dir: "/var/lib/appbridge/icons",
		},
		Settings: SettingsConfig{
			DBPath: "/var/lib/appbridge/settings.db",
		},
		Relay: RelayConfig{
			QueueSize:      256,
			EnqueueTimeout: 250,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
