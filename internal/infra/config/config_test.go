package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Relay.Mode != "durable" {
		t.Errorf("Mode = %q", cfg.Relay.Mode)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "./relay.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Relay.PushTimeout != 10*time.Second {
		t.Errorf("PushTimeout = %s", cfg.Relay.PushTimeout)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
relay:
  mode: synchronous
  push_timeout: 3s
  breaker:
    enabled: true
    max_failures: 7
store:
  backend: memory
auth:
  tokens:
    - token: hunter2
      name: ops
logger:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Relay.Mode != "synchronous" {
		t.Errorf("Mode = %q", cfg.Relay.Mode)
	}
	if cfg.Relay.PushTimeout != 3*time.Second {
		t.Errorf("PushTimeout = %s", cfg.Relay.PushTimeout)
	}
	if !cfg.Relay.Breaker.Enabled || cfg.Relay.Breaker.MaxFailures != 7 {
		t.Errorf("Breaker = %+v", cfg.Relay.Breaker)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Backend = %q", cfg.Store.Backend)
	}
	if len(cfg.Auth.Tokens) != 1 || cfg.Auth.Tokens[0].Token != "hunter2" {
		t.Errorf("Tokens = %+v", cfg.Auth.Tokens)
	}
	if cfg.Logger.Level != "debug" || cfg.Logger.Format != "json" {
		t.Errorf("Logger = %+v", cfg.Logger)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RELAYD_ADDR", ":7070")
	t.Setenv("RELAYD_RELAY_MODE", "synchronous")
	t.Setenv("RELAYD_PUSH_TIMEOUT", "5s")
	t.Setenv("RELAYD_STORE_BACKEND", "memory")
	t.Setenv("RELAYD_AUTH_TOKEN", "secret")
	t.Setenv("RELAYD_LOGGER_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Relay.Mode != "synchronous" {
		t.Errorf("Mode = %q", cfg.Relay.Mode)
	}
	if cfg.Relay.PushTimeout != 5*time.Second {
		t.Errorf("PushTimeout = %s", cfg.Relay.PushTimeout)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Backend = %q", cfg.Store.Backend)
	}
	if len(cfg.Auth.Tokens) != 1 || cfg.Auth.Tokens[0].Token != "secret" {
		t.Errorf("Tokens = %+v", cfg.Auth.Tokens)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Level = %q", cfg.Logger.Level)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("RELAYD_ADDR", ":7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Addr = %q, env should win over the file", cfg.Server.Addr)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Relay.Mode = "mirror" }},
		{"bad backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }},
		{"zero push timeout", func(c *Config) { c.Relay.PushTimeout = 0 }},
		{"rate limit zero burst", func(c *Config) { c.Server.RateLimit.BurstSize = 0 }},
		{"empty token", func(c *Config) { c.Auth.Tokens = []TokenConfig{{Token: ""}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}
