package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lu-zhengda/netpulse/internal/utils"
	"gopkg.in/yaml.v3"
)

// Environment overrides, also read from a .env file in the working directory.
const (
	EnvBackendURL = "NETPULSE_BACKEND_URL"
	EnvLogLevel   = "NETPULSE_LOG_LEVEL"
)

// Config holds all netpulse configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	UI      UIConfig      `yaml:"ui"`
	Log     LogConfig     `yaml:"log"`
	History HistoryConfig `yaml:"history"`
}

// BackendConfig locates the discovery backend.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type UIConfig struct {
	Theme string `yaml:"theme"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// HistoryConfig controls the local record of completed scans.
type HistoryConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// Default returns a Config with all default values populated.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:8787",
			Timeout: "95s",
		},
		UI: UIConfig{
			Theme: "dark",
		},
		Log: LogConfig{
			Level: "info",
			File:  "~/.local/state/netpulse/netpulse.log",
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 200,
		},
	}
}

// DefaultPath returns ~/.config/netpulse/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "netpulse", "config.yaml"), nil
}

// Load loads config from the given path. If path is empty, it uses the
// default location. If the file does not exist, it creates it with default
// values. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	var cfg *Config
	if !utils.FileExists(path) {
		cfg = Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		var err error
		cfg, err = LoadFrom(path)
		if err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(dotEnvPath); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// dotEnvPath is read relative to the working directory.
var dotEnvPath = ".env"

// loadDotEnv exports the variables in path without overriding ones already
// set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFrom loads and parses config from the given path. Missing fields
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides file values with non-empty environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvBackendURL); v != "" {
		c.Backend.BaseURL = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Save marshals the config to YAML and writes it to the given path,
// creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BackendTimeout returns the parsed backend timeout, or the 95s default.
func (c *Config) BackendTimeout() time.Duration {
	return ParseDuration(c.Backend.Timeout, 95*time.Second)
}

// LogFile returns the log path with ~ expanded.
func (c *Config) LogFile() string {
	return ExpandHome(c.Log.File)
}

// ParseDuration parses Go duration strings and a "Nd" day shorthand.
// Empty or unparseable strings yield fallback.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if strings.HasSuffix(s, "d") {
		var days int
		if _, err := fmt.Sscanf(strings.TrimSuffix(s, "d"), "%d", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}

// Warning is a non-fatal problem found while validating a config file.
type Warning struct {
	Field      string
	Message    string
	Suggestion string
}

var knownTopLevel = map[string]bool{
	"backend": true,
	"ui":      true,
	"log":     true,
	"history": true,
}

// Validate checks values that parse but would misbehave at runtime.
func (c *Config) Validate() []Warning {
	var ws []Warning

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		ws = append(ws, Warning{
			Field:      "backend.base_url",
			Message:    fmt.Sprintf("%q is not an absolute URL", c.Backend.BaseURL),
			Suggestion: "http://127.0.0.1:8787",
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		ws = append(ws, Warning{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
		})
	}

	if c.Backend.Timeout != "" {
		if d, err := time.ParseDuration(c.Backend.Timeout); err != nil || d <= 0 {
			ws = append(ws, Warning{
				Field:      "backend.timeout",
				Message:    fmt.Sprintf("invalid duration %q, using 95s", c.Backend.Timeout),
				Suggestion: "95s",
			})
		}
	}

	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light":
	default:
		ws = append(ws, Warning{
			Field:      "ui.theme",
			Message:    fmt.Sprintf("unknown theme %q, using dark", c.UI.Theme),
			Suggestion: "dark or light",
		})
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		ws = append(ws, Warning{
			Field:      "log.level",
			Message:    fmt.Sprintf("unknown log level %q", c.Log.Level),
			Suggestion: "info",
		})
	}

	if c.History.MaxEntries < 0 {
		ws = append(ws, Warning{
			Field:   "history.max_entries",
			Message: "must not be negative",
		})
	}

	return ws
}

// LoadAndValidate parses raw YAML and returns the config plus warnings,
// including unknown top-level keys. A parse failure is itself a warning.
func LoadAndValidate(data []byte) (*Config, []Warning) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, []Warning{{Message: fmt.Sprintf("failed to parse YAML: %v", err)}}
	}

	var ws []Warning
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err == nil {
		for key := range raw {
			if !knownTopLevel[key] {
				ws = append(ws, Warning{
					Field:   key,
					Message: "unknown key",
				})
			}
		}
	}
	return cfg, append(ws, cfg.Validate()...)
}
