package goShield

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "reaper interval zero invalid",
			mutate: func(c *Config) {
				c.Session.ReaperInterval = 0
			},
			wantValid: false,
		},
		{
			name: "reaper interval zero allowed when disabled",
			mutate: func(c *Config) {
				c.Session.ReaperEnabled = false
				c.Session.ReaperInterval = 0
			},
			wantValid: true,
		},
		{
			name: "record ttl shorter than timeout invalid",
			mutate: func(c *Config) {
				c.Session.RecordTTL = Duration(time.Minute)
			},
			wantValid: false,
		},
		{
			name: "record ttl zero keeps records",
			mutate: func(c *Config) {
				c.Session.RecordTTL = 0
			},
			wantValid: true,
		},
		{
			name: "negative timeout never expires",
			mutate: func(c *Config) {
				c.Session.DefaultTimeout = Duration(-1)
			},
			wantValid: true,
		},
		{
			name: "blank redis prefix invalid",
			mutate: func(c *Config) {
				c.Session.RedisPrefix = "  "
			},
			wantValid: false,
		},
		{
			name: "throttle without attempts invalid",
			mutate: func(c *Config) {
				c.Throttle.Enabled = true
				c.Throttle.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "throttle settings ignored when disabled",
			mutate: func(c *Config) {
				c.Throttle.Cooldown = 0
			},
			wantValid: true,
		},
		{
			name: "modules mode valid",
			mutate: func(c *Config) {
				c.Authorization.Mode = AuthorizationModeModules
				c.Authorization.Strategy = "consensus"
			},
			wantValid: true,
		},
		{
			name: "unknown mode invalid",
			mutate: func(c *Config) {
				c.Authorization.Mode = "acl"
			},
			wantValid: false,
		},
		{
			name: "unknown strategy invalid",
			mutate: func(c *Config) {
				c.Authorization.Strategy = "first-wins"
			},
			wantValid: false,
		},
		{
			name: "negative cache ttl invalid",
			mutate: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.TTL = Duration(-time.Second)
			},
			wantValid: false,
		},
		{
			name: "async events need a buffer",
			mutate: func(c *Config) {
				c.Events.Enabled = true
				c.Events.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "latency without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
		{
			name: "unknown log level invalid",
			mutate: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			wantValid: false,
		},
		{
			name: "text logging valid",
			mutate: func(c *Config) {
				c.Logging.Format = "text"
				c.Logging.Level = "debug"
			},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Authorization.Mode = "acl"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("expected joined errors, got %T", err)
	}
	if n := len(joined.Unwrap()); n != 2 {
		t.Fatalf("expected 2 problems, got %d: %v", n, err)
	}
}

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfigFile(t, "goshield.toml", `
[session]
default_timeout = "45m"
reaper_interval = "10m"

[authorization]
mode = "modules"
strategy = "unanimous"

[cache]
enabled = true
ttl = "90s"

[logging]
level = "debug"
format = "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.DefaultTimeout.Std() != 45*time.Minute || cfg.Session.ReaperInterval.Std() != 10*time.Minute {
		t.Fatalf("unexpected session section: %+v", cfg.Session)
	}
	if cfg.Authorization.Mode != AuthorizationModeModules || cfg.Authorization.Strategy != "unanimous" {
		t.Fatalf("unexpected authorization section: %+v", cfg.Authorization)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL.Std() != 90*time.Second {
		t.Fatalf("unexpected cache section: %+v", cfg.Cache)
	}
	// Unset keys keep their defaults.
	if cfg.Session.RedisPrefix != "gs" || !cfg.Session.ReaperEnabled {
		t.Fatalf("defaults were lost: %+v", cfg.Session)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfigFile(t, "goshield.yaml", `
session:
  default_timeout: 15m
  redis_prefix: tenant-a
events:
  enabled: true
  async: false
metrics:
  enabled: true
  enable_latency_histograms: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.DefaultTimeout.Std() != 15*time.Minute || cfg.Session.RedisPrefix != "tenant-a" {
		t.Fatalf("unexpected session section: %+v", cfg.Session)
	}
	if !cfg.Events.Enabled || cfg.Events.Async || cfg.Events.BufferSize != 1024 {
		t.Fatalf("unexpected events section: %+v", cfg.Events)
	}
	if !cfg.Metrics.Enabled || !cfg.Metrics.EnableLatencyHistograms {
		t.Fatalf("unexpected metrics section: %+v", cfg.Metrics)
	}
}

func TestLoadConfigFailures(t *testing.T) {
	if _, err := LoadConfig(writeConfigFile(t, "goshield.json", `{}`)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected unsupported extension to fail, got %v", err)
	}
	if _, err := LoadConfig(writeConfigFile(t, "bad.toml", "[session]\ndefault_timeout = \"soon\"\n")); err == nil {
		t.Fatal("expected bad duration to fail")
	}
	if _, err := LoadConfig(writeConfigFile(t, "bad.yml", "authorization:\n  mode: acl\n")); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid mode to fail validation, got %v", err)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file to fail")
	}
}

func TestBuildConfigImmutabilityAgainstExternalMutation(t *testing.T) {
	cfg := DefaultConfig()
	b := New().WithConfig(cfg).WithRealm(newTestRealm(t, "local")).WithLogger(discardLogger())
	cfg.Session.RedisPrefix = "mutated"

	sm, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer sm.Close()
	if sm.Config().Session.RedisPrefix != "gs" {
		t.Fatalf("builder must copy config, got %q", sm.Config().Session.RedisPrefix)
	}
}
