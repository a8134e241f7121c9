package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Page      PageConfig      `yaml:"page" toml:"page"`
	Replay    ReplayConfig    `yaml:"replay" toml:"replay"`
	UI        UIConfig        `yaml:"ui" toml:"ui"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds host HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host" toml:"host"`
}

// PageConfig holds page runtime configuration.
type PageConfig struct {
	ID           string `envconfig:"PAGE_ID" yaml:"id" toml:"id"`
	Listen       string `envconfig:"PAGE_LISTEN" default:"127.0.0.1:8080" yaml:"listen" toml:"listen"`
	TargetOrigin string `envconfig:"PAGE_TARGET_ORIGIN" default:"https://apclassroom.collegeboard.org" yaml:"target_origin" toml:"target_origin"`
	HostURL      string `envconfig:"PAGE_HOST_URL" default:"http://127.0.0.1:8000" yaml:"host_url" toml:"host_url"`
}

// ReplayConfig holds replay request configuration.
type ReplayConfig struct {
	BaseURL        string   `envconfig:"REPLAY_BASE_URL" default:"https://apc-api-production.collegeboard.org" yaml:"base_url" toml:"base_url"`
	Timeout        Duration `envconfig:"REPLAY_TIMEOUT" default:"30s" yaml:"timeout" toml:"timeout"`
	ReloadDelay    Duration `envconfig:"REPLAY_RELOAD_DELAY" default:"500ms" yaml:"reload_delay" toml:"reload_delay"`
	SyntheticDelay Duration `envconfig:"REPLAY_SYNTHETIC_DELAY" default:"10ms" yaml:"synthetic_delay" toml:"synthetic_delay"`
}

// UIConfig holds status client configuration.
type UIConfig struct {
	HostURL    string   `envconfig:"UI_HOST_URL" default:"http://127.0.0.1:8000" yaml:"host_url" toml:"host_url"`
	PageID     string   `envconfig:"UI_PAGE_ID" default:"active" yaml:"page_id" toml:"page_id"`
	TargetHost string   `envconfig:"UI_TARGET_HOST" default:"apclassroom.collegeboard.org" yaml:"target_host" toml:"target_host"`
	Interval   Duration `envconfig:"UI_INTERVAL" default:"1s" yaml:"interval" toml:"interval"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
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
			Port: "8000",
			Host: "0.0.0.0",
		},
		Page: PageConfig{
			Listen:       "127.0.0.1:8080",
			TargetOrigin: "https://apclassroom.collegeboard.org",
			HostURL:      "http://127.0.0.1:8000",
		},
		Replay: ReplayConfig{
			BaseURL:        "https://apc-api-production.collegeboard.org",
			Timeout:        Duration{30 * time.Second},
			ReloadDelay:    Duration{500 * time.Millisecond},
			SyntheticDelay: Duration{10 * time.Millisecond},
		},
		UI: UIConfig{
			HostURL:    "http://127.0.0.1:8000",
			PageID:     "active",
			TargetHost: "apclassroom.collegeboard.org",
			Interval:   Duration{time.Second},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}

// Duration is a time.Duration read from strings such as "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
