// Package config loads the scoring API configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "100ms" or "1s", or from plain integers taken as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig configures the Redis key-value backend.
type StoreConfig struct {
	Host              string   `yaml:"host"`
	Port              int      `yaml:"port"`
	DB                int      `yaml:"db"`
	ReconnectAttempts int      `yaml:"reconnect_attempts"`
	ReconnectDelay    Duration `yaml:"reconnect_delay"`
	ConnectTimeout    Duration `yaml:"connect_timeout"`
	ReadTimeout       Duration `yaml:"read_timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			Host:              "localhost",
			Port:              6379,
			DB:                0,
			ReconnectAttempts: 3,
			ReconnectDelay:    Duration(100 * time.Millisecond),
			ConnectTimeout:    Duration(time.Second),
			ReadTimeout:       Duration(time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromPath reads a YAML config file, falling back to defaults for any
// field left unset.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the config at path, or returns defaults (with env
// overrides applied) when path is empty or missing.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadFromPath(path)
		}
	}
	cfg := Default()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STORE_HOST"); v != "" {
		c.Store.Host = v
	}
	if v := os.Getenv("STORE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Store.Port = port
		}
	}
	if v := os.Getenv("STORE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.DB = db
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Store.Port <= 0 || c.Store.Port > 65535 {
		return fmt.Errorf("store port %d out of range", c.Store.Port)
	}
	if c.Store.ReconnectAttempts < 1 {
		return fmt.Errorf("store reconnect_attempts must be at least 1")
	}
	if c.Store.ReconnectDelay < 0 {
		return fmt.Errorf("store reconnect_delay must not be negative")
	}
	return nil
}

// StoreAddr returns the host:port address of the key-value backend.
func (c *Config) StoreAddr() string {
	return fmt.Sprintf("%s:%d", c.Store.Host, c.Store.Port)
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
