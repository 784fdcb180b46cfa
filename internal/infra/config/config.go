package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Relay  RelayConfig  `yaml:"relay"`
	Store  StoreConfig  `yaml:"store"`
	Auth   AuthConfig   `yaml:"auth"`
	Logger LoggerConfig `yaml:"logger"`
	Tracer TracerConfig `yaml:"tracer"`
}

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	Addr      string          `yaml:"addr"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled        bool     `yaml:"enabled"`
	RequestsPerMin int      `yaml:"requests_per_min"`
	BurstSize      int      `yaml:"burst_size"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// RelayConfig holds delivery policy settings. Mode is fixed per deployment:
// "durable" (enqueue + best-effort push) or "synchronous" (forward and
// return the remote reply).
type RelayConfig struct {
	Mode        string        `yaml:"mode"`
	PushTimeout time.Duration `yaml:"push_timeout"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for the outbound push path.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// StoreConfig selects the backing store for the registry and queue.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "sqlite" or "memory"
	Path    string `yaml:"path"`    // sqlite database file
}

// AuthConfig holds shared-secret settings for the register endpoint.
// An empty token list disables the check.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig holds a single shared-secret token.
type TokenConfig struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
			RateLimit: RateLimitConfig{
				Enabled:        true,
				RequestsPerMin: 300,
				BurstSize:      50,
			},
		},
		Relay: RelayConfig{
			Mode:        "durable",
			PushTimeout: 10 * time.Second,
			Breaker: BreakerConfig{
				Enabled:     false,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "./relay.db",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error: defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps RELAYD_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAYD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RELAYD_RELAY_MODE"); v != "" {
		cfg.Relay.Mode = v
	}
	if v := os.Getenv("RELAYD_PUSH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Relay.PushTimeout = d
		}
	}
	if v := os.Getenv("RELAYD_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("RELAYD_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("RELAYD_AUTH_TOKEN"); v != "" {
		cfg.Auth.Tokens = append(cfg.Auth.Tokens, TokenConfig{Token: v, Name: "env"})
	}
	if v := os.Getenv("RELAYD_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("RELAYD_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("RELAYD_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("RELAYD_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// Validate checks cross-field constraints.
func Validate(cfg *Config) error {
	switch cfg.Relay.Mode {
	case "durable", "synchronous":
	default:
		return fmt.Errorf("relay.mode must be \"durable\" or \"synchronous\", got %q", cfg.Relay.Mode)
	}

	switch cfg.Store.Backend {
	case "sqlite":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be \"sqlite\" or \"memory\", got %q", cfg.Store.Backend)
	}

	if cfg.Relay.PushTimeout <= 0 {
		return fmt.Errorf("relay.push_timeout must be positive, got %s", cfg.Relay.PushTimeout)
	}

	if cfg.Server.RateLimit.Enabled {
		if cfg.Server.RateLimit.RequestsPerMin <= 0 || cfg.Server.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("server.rate_limit requires positive requests_per_min and burst_size")
		}
	}

	for i, tok := range cfg.Auth.Tokens {
		if tok.Token == "" {
			return fmt.Errorf("auth.tokens[%d]: empty token", i)
		}
	}

	return nil
}
