package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

type Config struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	APIHost      string `json:"api_host"`
	APIPort      string `json:"api_port"`
	DatabasePath string `json:"database_path"`
	LogLevel     string `json:"log_level"`

	configFile string
}

func NewConfig(filename string) *Config {
	if filename == "" {
		filename = "server_config.json"
	}
	return &Config{
		configFile: filename,
		// Defaults
		Host:         "localhost",
		Port:         "11111",
		APIHost:      "localhost",
		APIPort:      "8080",
		DatabasePath: "chat.db",
		LogLevel:     "info",
	}
}

func (c *Config) Load() error {
	if _, err := os.Stat(c.configFile); os.IsNotExist(err) {
		// Create default config if not exists
		return c.save()
	}

	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}
	return nil
}

func (c *Config) save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.configFile, data, 0644)
}

// ChatAddr is the host:port the chat listener binds to.
func (c *Config) ChatAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// APIAddr is the host:port the admin HTTP server binds to.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%s", c.APIHost, c.APIPort)
}

// SlogLevel maps the configured level name onto a slog level, defaulting to
// info for anything unrecognized.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
