// Package config provides configuration types for the shop.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Mode Mode   `mapstructure:"mode"` // "embedded" or "remote"
	URL  string `mapstructure:"url"`  // Required for remote mode

	LogLevel string         `mapstructure:"log_level"` // Log level (debug, info, warn, error)
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Events   EventsConfig   `mapstructure:"events"`
	Items    []ItemConfig   `mapstructure:"items"`
}

// SetDefaults sets viper defaults for shop configuration when used as an embedded library.
func (c *Config) SetDefaults(v *viper.Viper, prefix string) {
	p := ""
	if prefix != "" {
		p = prefix + "."
	}

	// Mode defaults
	v.SetDefault(p+"mode", "embedded")
	v.SetDefault(p+"url", "")

	v.SetDefault(p+"log_level", "info")

	// Server defaults
	v.SetDefault(p+"server.address", ":8000")
	v.SetDefault(p+"server.read_timeout", "30s")
	v.SetDefault(p+"server.write_timeout", "30s")
	v.SetDefault(p+"server.shutdown_timeout", "10s")

	// Database defaults
	v.SetDefault(p+"database.type", "sqlite")
	v.SetDefault(p+"database.sqlite_path", "misprint.db")

	// Events defaults
	v.SetDefault(p+"events.type", "memory")
	v.SetDefault(p+"events.buffer_size", 100)
	v.SetDefault(p+"events.redis_url", "redis://localhost:6379/0")

	// Item defaults: a single unit of a misprinted card, the whole point
	// of the demo.
	v.SetDefault(p+"items", []map[string]any{
		{
			"id":          "charizard-1st-ed",
			"name":        "1st Edition Charizard",
			"description": "Misprinted holo, near mint. Only one in stock.",
			"image_url":   "",
			"quantity":    1,
		},
	})
}

// ServerConfig holds HTTP API server configuration
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type       string `mapstructure:"type"` // "sqlite" or "memory"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// EventsConfig holds event publisher configuration
type EventsConfig struct {
	Type       string `mapstructure:"type"` // "memory" or "redis"
	BufferSize int    `mapstructure:"buffer_size"`
	RedisURL   string `mapstructure:"redis_url"`
}

// ItemConfig describes an item seeded at startup.
type ItemConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	ImageURL    string `mapstructure:"image_url"`
	Quantity    int64  `mapstructure:"quantity"`
}

// GetLogLevel returns the log level, defaulting to "info".
func (c *Config) GetLogLevel() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return "info"
}
