package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Calendly.BaseURL != "https://api.calendly.com" {
		t.Errorf("BaseURL = %q", cfg.Calendly.BaseURL)
	}
	if cfg.Calendly.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Calendly.MaxRetries)
	}
	if cfg.Calendly.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Calendly.Timeout)
	}
	if cfg.Cache.MaxBytes != 20*1024*1024 {
		t.Errorf("Cache.MaxBytes = %d, want 20 MB", cfg.Cache.MaxBytes)
	}
	if cfg.Session.Backend != "memory" {
		t.Errorf("Session.Backend = %q, want memory", cfg.Session.Backend)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
calendly:
  token: file-token
llm:
  api_key: file-key
  model: claude-3-opus-latest
server:
  port: 9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Calendly.Token != "file-token" {
		t.Errorf("Token = %q", cfg.Calendly.Token)
	}
	if cfg.LLM.Model != "claude-3-opus-latest" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	// Untouched fields keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want default", cfg.Server.Host)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
calendly:
  token: file-token
llm:
  api_key: file-key
`)
	t.Setenv("ACME_DENTAL_CALENDLY_TOKEN", "env-token")
	t.Setenv("ACME_DENTAL_SERVER_PORT", "8081")
	t.Setenv("ACME_DENTAL_LOG_PRETTY", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Calendly.Token != "env-token" {
		t.Errorf("Token = %q, env must win over file", cfg.Calendly.Token)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Port = %d, want 8081 from env", cfg.Server.Port)
	}
	if !cfg.Log.Pretty {
		t.Error("Log.Pretty should be set from env")
	}
}

func TestLoad_MissingRequiredToken(t *testing.T) {
	t.Setenv("ACME_DENTAL_ANTHROPIC_API_KEY", "k")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected an error for missing calendly token")
	}
	// The error must name the variable that supplies the value.
	if got := err.Error(); !strings.Contains(got, "CALENDLY_TOKEN") {
		t.Errorf("error %q should name ACME_DENTAL_CALENDLY_TOKEN", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("a named but missing config file should error")
	}
}

func TestValidate_SessionBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Calendly.Token = "t"
	cfg.LLM.APIKey = "k"

	cfg.Session.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Error("redis backend without an address should fail validation")
	}

	cfg.Session.RedisAddr = "localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid redis config rejected: %v", err)
	}

	cfg.Session.Backend = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail validation")
	}
}

func TestServerAddr(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8000}
	if cfg.Addr() != "127.0.0.1:8000" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
}

