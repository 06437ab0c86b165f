package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "waplink.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
engine: evolution
evolution:
  base_url: http://localhost:8080
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Evolution.ConnectTimeout != 65*time.Second {
		t.Errorf("connect timeout = %v, want 65s", cfg.Evolution.ConnectTimeout)
	}
	if cfg.Lifecycle.MaxAuthRetries != 3 {
		t.Errorf("max auth retries = %d, want 3", cfg.Lifecycle.MaxAuthRetries)
	}
	if cfg.Sync.Concurrency != 20 {
		t.Errorf("sync concurrency = %d, want 20", cfg.Sync.Concurrency)
	}
	if cfg.Sync.RetryAttempts != 3 || cfg.Sync.RetryInterval != time.Second {
		t.Errorf("sync retry = %d x %v, want 3 x 1s", cfg.Sync.RetryAttempts, cfg.Sync.RetryInterval)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
engine: codechat
codechat:
  base_url: http://codechat:8083
  global_token: secret
sync:
  concurrency: 5
lifecycle:
  max_auth_retries: 7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Engine != EngineCodechat {
		t.Errorf("engine = %q", cfg.Engine)
	}
	if cfg.Sync.Concurrency != 5 {
		t.Errorf("concurrency = %d, want 5", cfg.Sync.Concurrency)
	}
	if cfg.Lifecycle.MaxAuthRetries != 7 {
		t.Errorf("max auth retries = %d, want 7", cfg.Lifecycle.MaxAuthRetries)
	}
	if p := cfg.Provider(); p.BaseURL != "http://codechat:8083" || p.GlobalToken != "secret" {
		t.Errorf("provider = %+v", p)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
engine: evolution
evolution:
  base_url: http://from-file:8080
`)
	t.Setenv("WAPLINK_EVOLUTION_URL", "http://from-env:9090")
	t.Setenv("WAPLINK_EVOLUTION_TOKEN", "env-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Evolution.BaseURL != "http://from-env:9090" {
		t.Errorf("base url = %q, env should win", cfg.Evolution.BaseURL)
	}
	if cfg.Evolution.GlobalToken != "env-token" {
		t.Errorf("token = %q", cfg.Evolution.GlobalToken)
	}
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("WAPLINK_EVOLUTION_URL", "http://env-only:8080")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Evolution.BaseURL != "http://env-only:8080" {
		t.Errorf("base url = %q", cfg.Evolution.BaseURL)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown engine", func(c *Config) { c.Engine = "telegram" }},
		{"missing base url", func(c *Config) { c.Evolution.BaseURL = "" }},
		{"zero concurrency", func(c *Config) { c.Sync.Concurrency = 0 }},
		{"zero retry attempts", func(c *Config) { c.Sync.RetryAttempts = 0 }},
		{"zero auth retries", func(c *Config) { c.Lifecycle.MaxAuthRetries = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Evolution.BaseURL = "http://localhost:8080"
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate should reject this config")
			}
		})
	}
}
