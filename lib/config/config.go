// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the console configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Root is the base directory for console state.
	Root string `yaml:"root"`

	Server ServerConfig `yaml:"server"`
	State  StateConfig  `yaml:"state"`
	Log    LogConfig    `yaml:"log"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the fields an environment section may replace.
type Overrides struct {
	Server *ServerConfig `yaml:"server,omitempty"`
	State  *StateConfig  `yaml:"state,omitempty"`
	Log    *LogConfig    `yaml:"log,omitempty"`
}

// ServerConfig locates the profile host.
type ServerConfig struct {
	// URL is the websocket endpoint carrying the session
	// (e.g. "ws://127.0.0.1:8787/ws").
	URL string `yaml:"url"`

	// APIURL is the base URL of the side-channel HTTP API used for
	// token acquisition, profile management and thread resume.
	APIURL string `yaml:"api_url"`

	// Token is a static bearer token. When empty the token is fetched
	// once from the side channel and cached for the process lifetime.
	Token string `yaml:"token"`

	// WireFormat is "json" (text frames) or "cbor" (binary frames).
	WireFormat string `yaml:"wire_format"`

	// HandshakeTimeout bounds the websocket opening handshake.
	HandshakeTimeout string `yaml:"handshake_timeout"`
}

// StateConfig configures local persistence.
type StateConfig struct {
	// Database is the SQLite file holding queued turns and transcript
	// snapshots. Empty keeps everything in memory.
	Database string `yaml:"database"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is auto (text on a terminal, JSON otherwise), text or json.
	Format string `yaml:"format"`
}

// Default returns the base configuration that a loaded file is merged
// onto.
func Default() *Config {
	homeDirectory, _ := os.UserHomeDir()
	root := filepath.Join(homeDirectory, ".cache", "bureau-console")

	return &Config{
		Environment: Development,
		Root:        root,
		Server: ServerConfig{
			URL:              "ws://127.0.0.1:8787/ws",
			APIURL:           "http://127.0.0.1:8787",
			WireFormat:       "json",
			HandshakeTimeout: "10s",
		},
		State: StateConfig{
			Database: "${CONSOLE_ROOT}/state.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by CONSOLE_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("CONSOLE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CONSOLE_CONFIG environment variable not set; " +
			"set it to the path of your console.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration bytes. extension selects JSONC handling
// for ".json" and ".jsonc"; anything else is YAML.
func Parse(data []byte, extension string) (*Config, error) {
	switch strings.ToLower(extension) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			// Production logs are shipped, not read on a terminal.
			overrides = &Overrides{Log: &LogConfig{Format: "json"}}
		}
	}
	if overrides == nil {
		return
	}

	if server := overrides.Server; server != nil {
		if server.URL != "" {
			c.Server.URL = server.URL
		}
		if server.APIURL != "" {
			c.Server.APIURL = server.APIURL
		}
		if server.Token != "" {
			c.Server.Token = server.Token
		}
		if server.WireFormat != "" {
			c.Server.WireFormat = server.WireFormat
		}
		if server.HandshakeTimeout != "" {
			c.Server.HandshakeTimeout = server.HandshakeTimeout
		}
	}
	if overrides.State != nil && overrides.State.Database != "" {
		c.State.Database = overrides.State.Database
	}
	if log := overrides.Log; log != nil {
		if log.Level != "" {
			c.Log.Level = log.Level
		}
		if log.Format != "" {
			c.Log.Format = log.Format
		}
	}
}

func (c *Config) expandVariables() {
	variables := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Root = expandVars(c.Root, variables)
	variables["CONSOLE_ROOT"] = c.Root
	c.State.Database = expandVars(c.State.Database, variables)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, consulting variables
// before the process environment.
func expandVars(s string, variables map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := variables[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// HandshakeTimeoutDuration parses Server.HandshakeTimeout.
func (c *Config) HandshakeTimeoutDuration() (time.Duration, error) {
	if c.Server.HandshakeTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Server.HandshakeTimeout)
}

// LogLevel maps Log.Level to a slog level. Unknown values were rejected
// by Validate; they map to Info here.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Server.URL == "" {
		errs = append(errs, errors.New("server.url is required"))
	} else if !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
		errs = append(errs, fmt.Errorf("server.url must be a ws:// or wss:// URL, got %q", c.Server.URL))
	}
	if c.Server.Token == "" && c.Server.APIURL == "" {
		errs = append(errs, errors.New("server.api_url is required when server.token is empty"))
	}
	switch c.Server.WireFormat {
	case "", "json", "cbor":
	default:
		errs = append(errs, fmt.Errorf("server.wire_format must be json or cbor, got %q", c.Server.WireFormat))
	}
	if _, err := c.HandshakeTimeoutDuration(); err != nil {
		errs = append(errs, fmt.Errorf("server.handshake_timeout: %w", err))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be auto, text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
