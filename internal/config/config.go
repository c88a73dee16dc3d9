// Package config provides configuration loading for the strata server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	Documents DocumentsConfig `yaml:"documents"`
	Reference ReferenceConfig `yaml:"reference"`
	EventBus  EventBusConfig  `yaml:"event_bus"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Port is the TCP port to listen on (default: 8080)
	Port int `yaml:"port"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string `yaml:"level"`
}

// DatabaseConfig configures the activity store.
type DatabaseConfig struct {
	// URL is a SQLite DSN; empty keeps activity in memory
	URL string `yaml:"url"`
}

// NATSConfig configures domain event forwarding.
type NATSConfig struct {
	// URL is the NATS server URL (empty = no forwarding)
	URL string `yaml:"url"`
}

// DocumentsConfig configures the document sink.
type DocumentsConfig struct {
	// Bucket is the S3 bucket (empty = in-memory sink)
	Bucket string `yaml:"bucket"`
	// Region is the AWS region of Bucket
	Region string `yaml:"region"`
}

// ReferenceConfig configures the reference tables.
type ReferenceConfig struct {
	// Path overrides the embedded tables.cue
	Path string `yaml:"path"`
}

// EventBusConfig configures the in-process event bus.
type EventBusConfig struct {
	// Buffer is the channel size (default: 256)
	Buffer int `yaml:"buffer"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:       LogConfig{Level: "info"},
		Documents: DocumentsConfig{Region: "ap-southeast-2"},
		EventBus:  EventBusConfig{Buffer: 256},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then a .env file in the working directory (if present),
// then environment variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if err := num("PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := num("EVENT_BUS_BUFFER", &c.EventBus.Buffer); err != nil {
		return err
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("DATABASE_URL", &c.Database.URL)
	str("NATS_URL", &c.NATS.URL)
	str("S3_BUCKET", &c.Documents.Bucket)
	str("S3_REGION", &c.Documents.Region)
	str("REFERENCE_PATH", &c.Reference.Path)
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	if c.EventBus.Buffer < 1 {
		return fmt.Errorf("event_bus.buffer must be at least 1, got %d", c.EventBus.Buffer)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Documents.Bucket != "" && c.Documents.Region == "" {
		return fmt.Errorf("documents.region is required when documents.bucket is set")
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}
