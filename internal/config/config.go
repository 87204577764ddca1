package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the kirimi CLI.
type Config struct {
	Kirimi   KirimiConfig   `toml:"kirimi" yaml:"kirimi"`
	Gateway  GatewayConfig  `toml:"gateway" yaml:"gateway"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Security SecurityConfig `toml:"security" yaml:"security"`
}

type KirimiConfig struct {
	UserCode string `toml:"user_code" yaml:"user_code"`
	Secret   string `toml:"secret" yaml:"secret"`
	DeviceID string `toml:"device_id" yaml:"device_id"`
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
}

// GatewayConfig is optional; an empty URL disables result publishing.
type GatewayConfig struct {
	URL   string `toml:"url" yaml:"url"`
	Token string `toml:"token" yaml:"token"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

const (
	SecurityModeOpen      = "open"
	SecurityModeAllowlist = "allowlist"
)

// SecurityConfig restricts who may be messaged. RateLimit is the number of
// calls per recipient within RateWindow seconds; zero means unlimited.
type SecurityConfig struct {
	Mode       string   `toml:"mode" yaml:"mode"`
	Allowed    []string `toml:"allowed" yaml:"allowed"`
	RateLimit  int      `toml:"rate_limit" yaml:"rate_limit"`
	RateWindow int      `toml:"rate_window" yaml:"rate_window"`
}

var (
	ErrMissingCredentials = errors.New("KIRIMI_USER_CODE and KIRIMI_SECRET_KEY must be set")
	ErrMissingDevice      = errors.New("KIRIMI_DEVICE_ID must be set")
)

func defaults() Config {
	return Config{
		Kirimi: KirimiConfig{
			Endpoint: "https://api.kirimi.id",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Security: SecurityConfig{
			Mode:       SecurityModeOpen,
			RateWindow: 60,
		},
	}
}

// Load reads configuration from the config file (if it exists) and
// applies environment variable overrides. Env vars always win.
//
// Config file resolution: KIRIMI_CONFIG env var → ~/.config/kirimi/config.toml → skip.
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
func Load() (*Config, error) {
	cfg := defaults()

	path := configPath()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := decodeFile(path, &cfg); err != nil {
				return nil, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	default:
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
}

func configPath() string {
	if p := os.Getenv("KIRIMI_CONFIG"); p != "" {
		return expandHome(p)
	}
	home := os.Getenv("HOME")
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "kirimi", "config.toml")
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KIRIMI_USER_CODE"); v != "" {
		cfg.Kirimi.UserCode = v
	}
	if v := os.Getenv("KIRIMI_SECRET_KEY"); v != "" {
		cfg.Kirimi.Secret = v
	}
	if v := os.Getenv("KIRIMI_DEVICE_ID"); v != "" {
		cfg.Kirimi.DeviceID = v
	}
	if v := os.Getenv("KIRIMI_ENDPOINT"); v != "" {
		cfg.Kirimi.Endpoint = v
	}

	if v := os.Getenv("KIRIMI_GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv("KIRIMI_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Token = v
	}

	if v := os.Getenv("KIRIMI_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KIRIMI_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv("KIRIMI_SECURITY_MODE"); v != "" {
		cfg.Security.Mode = v
	}
	if v := os.Getenv("KIRIMI_ALLOWED_RECIPIENTS"); v != "" {
		cfg.Security.Allowed = splitList(v)
	}
	if v := os.Getenv("KIRIMI_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.RateLimit = n
		}
	}
	if v := os.Getenv("KIRIMI_RATE_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.RateWindow = n
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the API credentials are set and normalises the
// security section.
func (c *Config) Validate() error {
	mode := strings.ToLower(c.Security.Mode)
	switch mode {
	case SecurityModeOpen, SecurityModeAllowlist:
		c.Security.Mode = mode
	default:
		c.Security.Mode = SecurityModeOpen
	}
	if c.Security.RateLimit < 0 {
		c.Security.RateLimit = 0
	}
	if c.Security.RateWindow <= 0 {
		c.Security.RateWindow = 60
	}

	if c.Kirimi.UserCode == "" || c.Kirimi.Secret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// ValidateDevice is Validate plus a sending device, needed by every command
// except the health check.
func (c *Config) ValidateDevice() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Kirimi.DeviceID == "" {
		return ErrMissingDevice
	}
	return nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
