// Package config loads waplink configuration from a YAML file with
// environment-variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine names for the provider gateway.
const (
	EngineEvolution = "evolution"
	EngineCodechat  = "codechat"
)

// ProviderConfig holds the HTTP settings for one WhatsApp engine.
type ProviderConfig struct {
	// BaseURL is the engine's API root, e.g. "http://localhost:8080".
	BaseURL string `yaml:"base_url"`
	// GlobalToken is the engine-wide ApiKey header used for instance
	// management calls (instance create, connect, state).
	GlobalToken string `yaml:"global_token"`
	// ConnectTimeout bounds instance create/connect calls. Pairing can
	// legitimately take a while; the engines themselves allow up to 65s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// DetailTimeout bounds chat/group detail resolution calls.
	DetailTimeout time.Duration `yaml:"detail_timeout"`
	// RequestsPerMinute caps outbound detail-resolution calls.
	// 0 disables the limiter.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// LifecycleConfig tunes the session state machine.
type LifecycleConfig struct {
	// MaxAuthRetries is the number of consecutive authentication
	// failures tolerated before a connection is marked FAILED and its
	// retry counter reset.
	MaxAuthRetries int `yaml:"max_auth_retries"`
	// StatePollInterval is how often a live handle polls the engine for
	// its connection state while pairing.
	StatePollInterval time.Duration `yaml:"state_poll_interval"`
}

// SyncConfig tunes the chat synchronization pipeline.
type SyncConfig struct {
	// Concurrency is the number of in-flight detail resolutions.
	Concurrency int `yaml:"concurrency"`
	// RetryAttempts is the per-entry resolution attempt bound.
	RetryAttempts int `yaml:"retry_attempts"`
	// RetryInterval is the fixed wait between resolution attempts.
	RetryInterval time.Duration `yaml:"retry_interval"`
	// LockTTL bounds how long a redis sync lock is held.
	LockTTL time.Duration `yaml:"lock_ttl"`
}

// TracingConfig configures the optional OTLP trace exporter.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"` // host:port, empty disables tracing
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Config is the root configuration.
type Config struct {
	// Engine selects the provider backend: "evolution" or "codechat".
	Engine string `yaml:"engine"`

	Evolution ProviderConfig `yaml:"evolution"`
	Codechat  ProviderConfig `yaml:"codechat"`

	// PostgresDSN is the connection store DSN. Empty selects the
	// in-memory stores (dev mode, nothing survives a restart).
	PostgresDSN string `yaml:"postgres_dsn"`

	// RedisAddr enables the cross-process sync lock. Empty disables it.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	// EncryptionKey encrypts provider tokens at rest. Empty stores them
	// in plain text.
	EncryptionKey string `yaml:"encryption_key"`

	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Sync      SyncConfig      `yaml:"sync"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// Default returns the configuration defaults applied before file and
// environment values.
func Default() *Config {
	return &Config{
		Engine: EngineEvolution,
		Evolution: ProviderConfig{
			ConnectTimeout:    65 * time.Second,
			DetailTimeout:     15 * time.Second,
			RequestsPerMinute: 0,
		},
		Codechat: ProviderConfig{
			ConnectTimeout:    65 * time.Second,
			DetailTimeout:     15 * time.Second,
			RequestsPerMinute: 0,
		},
		Lifecycle: LifecycleConfig{
			MaxAuthRetries:    3,
			StatePollInterval: 5 * time.Second,
		},
		Sync: SyncConfig{
			Concurrency:   20,
			RetryAttempts: 3,
			RetryInterval: time.Second,
			LockTTL:       5 * time.Minute,
		},
		Tracing: TracingConfig{
			ServiceName: "waplink",
		},
	}
}

// Load reads the config file at path (if it exists), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// No file is fine; env + defaults carry the day.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays WAPLINK_* environment variables. Secrets are the main
// use case; structural tuning belongs in the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("WAPLINK_ENGINE"); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv("WAPLINK_EVOLUTION_URL"); v != "" {
		cfg.Evolution.BaseURL = v
	}
	if v := os.Getenv("WAPLINK_EVOLUTION_TOKEN"); v != "" {
		cfg.Evolution.GlobalToken = v
	}
	if v := os.Getenv("WAPLINK_CODECHAT_URL"); v != "" {
		cfg.Codechat.BaseURL = v
	}
	if v := os.Getenv("WAPLINK_CODECHAT_TOKEN"); v != "" {
		cfg.Codechat.GlobalToken = v
	}
	if v := os.Getenv("WAPLINK_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("WAPLINK_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("WAPLINK_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("WAPLINK_ENCRYPTION_KEY"); v != "" {
		cfg.EncryptionKey = v
	}
	if v := os.Getenv("WAPLINK_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
}

// Validate checks engine selection and the selected engine's settings.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Engine) {
	case EngineEvolution, EngineCodechat:
	default:
		return fmt.Errorf("unknown engine %q (want %q or %q)", c.Engine, EngineEvolution, EngineCodechat)
	}
	if p := c.Provider(); p.BaseURL == "" {
		return fmt.Errorf("engine %s: base_url is not configured", c.Engine)
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Sync.RetryAttempts <= 0 {
		return fmt.Errorf("sync.retry_attempts must be positive, got %d", c.Sync.RetryAttempts)
	}
	if c.Lifecycle.MaxAuthRetries < 1 {
		return fmt.Errorf("lifecycle.max_auth_retries must be at least 1, got %d", c.Lifecycle.MaxAuthRetries)
	}
	return nil
}

// Provider returns the ProviderConfig for the selected engine.
func (c *Config) Provider() ProviderConfig {
	if strings.ToLower(c.Engine) == EngineCodechat {
		return c.Codechat
	}
	return c.Evolution
}
