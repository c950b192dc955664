// Package config holds the runtime configuration of a plugin binary.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/germanamz/deckhand/pkg/launch"
	"github.com/germanamz/deckhand/pkg/logging"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "DECKHAND_CONFIG"

// Config is the runtime configuration. Zero durations and sizes fall back to
// the defaults when loaded.
type Config struct {
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`    // text or json.
	LogFile         string        `yaml:"log_file"`      // Empty logs to stderr.
	LogWebsocket    bool          `yaml:"log_websocket"` // Trace raw frames at debug level.
	InboxSize       int           `yaml:"inbox_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	AppDebounce     time.Duration `yaml:"app_debounce"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	WSScheme        string        `yaml:"ws_scheme"`
	WSHost          string        `yaml:"ws_host"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:        "info",
		LogFormat:       "text",
		InboxSize:       64,
		ShutdownTimeout: 2 * time.Second,
		TickInterval:    100 * time.Millisecond,
		AppDebounce:     250 * time.Millisecond,
		WriteTimeout:    5 * time.Second,
		DialTimeout:     5 * time.Second,
		WSScheme:        "ws",
		WSHost:          "127.0.0.1",
	}
}

// Load reads a YAML file on top of Default. Environment variables referenced
// as ${VAR} or $VAR are expanded before parsing.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes on top of Default.
func Parse(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	cfg.fill()

	return cfg, nil
}

// FromEnv loads the file named by DECKHAND_CONFIG, or returns Default when
// the variable is unset.
func FromEnv() (Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		return Default(), nil
	}

	return Load(path)
}

func (c *Config) fill() {
	def := Default()

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.InboxSize == 0 {
		c.InboxSize = def.InboxSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.TickInterval == 0 {
		c.TickInterval = def.TickInterval
	}
	if c.AppDebounce == 0 {
		c.AppDebounce = def.AppDebounce
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.WSScheme == "" {
		c.WSScheme = def.WSScheme
	}
	if c.WSHost == "" {
		c.WSHost = def.WSHost
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: log_format %q: want text or json", c.LogFormat)
	}

	if c.InboxSize < 1 {
		return fmt.Errorf("config: inbox_size must be positive, got %d", c.InboxSize)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"shutdown_timeout", c.ShutdownTimeout},
		{"tick_interval", c.TickInterval},
		{"app_debounce", c.AppDebounce},
		{"write_timeout", c.WriteTimeout},
		{"dial_timeout", c.DialTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", d.name, d.d)
		}
	}

	if c.WSScheme != "ws" && c.WSScheme != "wss" {
		return fmt.Errorf("config: ws_scheme %q: want ws or wss", c.WSScheme)
	}

	return nil
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() logging.Level {
	lvl, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return logging.LevelInfo
	}

	return lvl
}

// Endpoint returns the scheme and host to dial. SD_WS_SCHEME and SD_WS_HOST
// take precedence over the file.
func (c Config) Endpoint() (scheme, host string) {
	scheme, host = c.WSScheme, c.WSHost

	if v := os.Getenv(launch.EnvScheme); v != "" {
		scheme = v
	}
	if v := os.Getenv(launch.EnvHost); v != "" {
		host = v
	}

	return scheme, host
}

// LoadDotEnv loads environment variables from path. Missing files are ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}
