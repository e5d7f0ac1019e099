// Package config loads the booking agent configuration from defaults,
// an optional YAML file, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all environment variables.
const EnvPrefix = "ACME_DENTAL"

// Config is the full agent configuration.
type Config struct {
	Calendly CalendlyConfig `yaml:"calendly"`
	LLM      LLMConfig      `yaml:"llm"`
	Server   ServerConfig   `yaml:"server"`
	Cache    CacheConfig    `yaml:"cache"`
	Session  SessionConfig  `yaml:"session"`
	FAQ      FAQConfig      `yaml:"faq"`
	Log      LogConfig      `yaml:"log"`
}

// CalendlyConfig configures the scheduling API client.
type CalendlyConfig struct {
	// Token is the personal access token (required, never hard-coded).
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`

	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	Timeout        time.Duration `yaml:"timeout"`
}

// LLMConfig configures the conversational model.
type LLMConfig struct {
	// APIKey is the Anthropic API key (required).
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CacheConfig configures the in-memory LRU cache.
type CacheConfig struct {
	MaxBytes int `yaml:"max_bytes"`
}

// SessionConfig selects the conversation store backend.
type SessionConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`

	// RedisAddr is required when Backend is "redis".
	RedisAddr string `yaml:"redis_addr"`

	// TTL bounds how long an idle conversation is kept.
	TTL time.Duration `yaml:"ttl"`
}

// FAQConfig locates the clinic knowledge base.
type FAQConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultConfig returns the baseline configuration before file and
// environment overrides.
func DefaultConfig() *Config {
	return &Config{
		Calendly: CalendlyConfig{
			BaseURL:        "https://api.calendly.com",
			MaxRetries:     3,
			InitialBackoff: 1 * time.Second,
			Timeout:        15 * time.Second,
		},
		LLM: LLMConfig{
			Model: "claude-3-haiku-20240307",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Cache: CacheConfig{
			MaxBytes: 20 * 1024 * 1024,
		},
		Session: SessionConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
		FAQ: FAQConfig{
			Path: "KNOWLEDGE_BASE.md",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration with full precedence order:
//  1. Defaults
//  2. YAML file at path (optional; "" skips, a missing named file errors)
//  3. Environment variables (ACME_DENTAL_*)
//
// The result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays ACME_DENTAL_* environment variables.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Calendly.Token, "CALENDLY_TOKEN")
	setString(&cfg.Calendly.BaseURL, "CALENDLY_BASE_URL")
	setString(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.LLM.Model, "MODEL_NAME")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setInt(&cfg.Cache.MaxBytes, "CACHE_MAX_BYTES")
	setString(&cfg.Session.Backend, "SESSION_BACKEND")
	setString(&cfg.Session.RedisAddr, "SESSION_REDIS_ADDR")
	setString(&cfg.FAQ.Path, "FAQ_PATH")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setBool(&cfg.Log.Pretty, "LOG_PRETTY")
}

// Validate checks required fields, naming the environment variable
// that supplies each missing value.
func (c *Config) Validate() error {
	if c.Calendly.Token == "" {
		return missing("calendly.token", "CALENDLY_TOKEN")
	}
	if c.LLM.APIKey == "" {
		return missing("llm.api_key", "ANTHROPIC_API_KEY")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Session.Backend != "memory" && c.Session.Backend != "redis" {
		return fmt.Errorf("invalid session.backend %q (want memory or redis)", c.Session.Backend)
	}
	if c.Session.Backend == "redis" && c.Session.RedisAddr == "" {
		return missing("session.redis_addr", "SESSION_REDIS_ADDR")
	}
	return nil
}

// Addr returns the host:port the server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func missing(field, envVar string) error {
	return fmt.Errorf("missing required configuration %s: set it in the config file or via %s_%s", field, EnvPrefix, envVar)
}

func setString(dst *string, name string) {
	if v := os.Getenv(EnvPrefix + "_" + name); v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) {
	if v := os.Getenv(EnvPrefix + "_" + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, name string) {
	if v := os.Getenv(EnvPrefix + "_" + name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
