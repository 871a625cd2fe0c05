// Package config loads reportctl settings from ~/.reportctl/config.yaml,
// REPORTCTL_* environment variables and .env files, and resolves the
// backend URL for production and local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable reportctl reads.
const EnvPrefix = "REPORTCTL_"

const (
	// DefaultStartDelay is how long a tracker waits before opening a stream.
	DefaultStartDelay = time.Second

	// DefaultRequestTimeout bounds non-streaming API requests.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultCacheSize is the number of materialized tables kept in memory.
	DefaultCacheSize = 32
)

// Duration is a time.Duration that reads and writes as "1s", "250ms" in YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ParseDuration accepts Go duration syntax or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is "text" or "json".
	Format string `yaml:"format,omitempty"`
}

// Config represents ~/.reportctl/config.yaml.
type Config struct {
	// BaseURL is the dashboard API root, without the /api suffix.
	BaseURL string `yaml:"base_url,omitempty"`

	// Token is sent as a bearer token when set.
	Token string `yaml:"token,omitempty"`

	// SessionCookie is forwarded as the session cookie when set.
	SessionCookie string `yaml:"session_cookie,omitempty"`

	// StartDelay is the debounce before a generation stream opens. Nil means the default.
	StartDelay *Duration `yaml:"start_delay,omitempty"`

	// StallTimeout aborts a stream that is silent this long. Zero disables it.
	StallTimeout Duration `yaml:"stall_timeout,omitempty"`

	// RequestTimeout bounds metadata, results and update requests.
	RequestTimeout Duration `yaml:"request_timeout,omitempty"`

	// CacheSize is the number of materialized tables kept.
	CacheSize int `yaml:"cache_size,omitempty"`

	// Log contains logger settings.
	Log LogConfig `yaml:"log,omitempty"`

	// MetricsAddr exposes /metrics on this address when set.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.StartDelay == nil {
		d := Duration(DefaultStartDelay)
		cfg.StartDelay = &d
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// EffectiveStartDelay returns the configured start delay, or the default
// when the config or the field is unset. An explicit zero is kept.
func EffectiveStartDelay(cfg *Config) time.Duration {
	if cfg == nil || cfg.StartDelay == nil {
		return DefaultStartDelay
	}
	if *cfg.StartDelay < 0 {
		return 0
	}
	return cfg.StartDelay.Std()
}

// DefaultPath returns ~/.reportctl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".reportctl", "config.yaml"), nil
}

// Load reads a config file. A missing file yields an empty config.
//
// Parameters:
//   - path: Path to the config.yaml file
//
// Returns:
//   - *Config: The loaded configuration, without defaults applied
//   - error: Any error that occurred during loading
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Write saves cfg to path, creating the parent directory.
//
// Parameters:
//   - path: Path to write the config.yaml file
//   - cfg: The configuration to write
//
// Returns:
//   - error: Any error that occurred during writing
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# reportctl configuration\n# Edit with: reportctl config set <key> <value>\n\n"
	if err := os.WriteFile(path, []byte(header+string(data)), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Resolve loads path, overlays .env and REPORTCTL_* variables, resolves the
// base URL for devMode and applies defaults.
func Resolve(path string, devMode bool) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	switch {
	case devMode:
		cfg.BaseURL = GetBackendURL(true)
	case cfg.BaseURL == "":
		cfg.BaseURL = ProdBackendURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyEnv overlays REPORTCTL_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	for _, key := range Keys() {
		envName := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		value, ok := os.LookupEnv(envName)
		if !ok {
			continue
		}
		if err := Set(cfg, key, value); err != nil {
			return fmt.Errorf("%s: %w", envName, err)
		}
	}
	return nil
}

var setters = map[string]func(*Config, string) error{
	"base_url":       func(c *Config, v string) error { c.BaseURL = v; return nil },
	"token":          func(c *Config, v string) error { c.Token = v; return nil },
	"session_cookie": func(c *Config, v string) error { c.SessionCookie = v; return nil },
	"start_delay": func(c *Config, v string) error {
		d, err := ParseDuration(v)
		if err != nil {
			return err
		}
		dur := Duration(d)
		c.StartDelay = &dur
		return nil
	},
	"stall_timeout": func(c *Config, v string) error {
		d, err := ParseDuration(v)
		c.StallTimeout = Duration(d)
		return err
	},
	"request_timeout": func(c *Config, v string) error {
		d, err := ParseDuration(v)
		c.RequestTimeout = Duration(d)
		return err
	},
	"cache_size": func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid cache size %q", v)
		}
		c.CacheSize = n
		return nil
	},
	"log.level": func(c *Config, v string) error {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "error":
			c.Log.Level = strings.ToLower(v)
			return nil
		}
		return fmt.Errorf("invalid log level %q (use debug, info, warn or error)", v)
	},
	"log.format": func(c *Config, v string) error {
		switch strings.ToLower(v) {
		case "text", "json":
			c.Log.Format = strings.ToLower(v)
			return nil
		}
		return fmt.Errorf("invalid log format %q (use text or json)", v)
	},
	"metrics_addr": func(c *Config, v string) error { c.MetricsAddr = v; return nil },
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to the setting named key.
func Set(cfg *Config, key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}
	return set(cfg, value)
}

// Redacted returns a copy of cfg with credentials masked for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Token = mask(c.Token)
	out.SessionCookie = mask(c.SessionCookie)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
