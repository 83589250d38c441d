package goShield

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/goShield/authz"
	"github.com/MrEthical07/goShield/session"
)

// Config is the full goShield configuration. Start from DefaultConfig and
// override fields, or load a file with LoadConfig.
type Config struct {
	Session       SessionConfig       `toml:"session" yaml:"session"`
	Authorization AuthorizationConfig `toml:"authorization" yaml:"authorization"`
	Cache         CacheConfig         `toml:"cache" yaml:"cache"`
	Throttle      ThrottleConfig      `toml:"throttle" yaml:"throttle"`
	Events        EventsConfig        `toml:"events" yaml:"events"`
	Metrics       MetricsConfig       `toml:"metrics" yaml:"metrics"`
	Logging       LoggingConfig       `toml:"logging" yaml:"logging"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the session manager, its store, and the reaper.
type SessionConfig struct {
	// DefaultTimeout is the idle timeout of new sessions. Negative disables
	// idle expiration.
	DefaultTimeout Duration `toml:"default_timeout" yaml:"default_timeout"`
	ReaperEnabled  bool     `toml:"reaper_enabled" yaml:"reaper_enabled"`
	ReaperInterval Duration `toml:"reaper_interval" yaml:"reaper_interval"`
	// RedisPrefix namespaces session keys when a Redis client is configured.
	RedisPrefix string `toml:"redis_prefix" yaml:"redis_prefix"`
	// RecordTTL bounds how long Redis keeps a record that was never stopped
	// or reaped. Zero keeps records until deleted.
	RecordTTL Duration `toml:"record_ttl" yaml:"record_ttl"`
}

/*
====================================
AUTHORIZATION CONFIG
====================================
*/

// Authorization decision modes.
const (
	AuthorizationModeRealm   = "realm"
	AuthorizationModeModules = "modules"
)

// AuthorizationConfig selects the decision path.
type AuthorizationConfig struct {
	// Mode is "realm" (any realm grants) or "modules" (voting engine).
	Mode string `toml:"mode" yaml:"mode"`
	// Strategy names the voting strategy in modules mode:
	// "deny-overrides", "unanimous", or "consensus".
	Strategy      string `toml:"strategy" yaml:"strategy"`
	CaseSensitive bool   `toml:"case_sensitive" yaml:"case_sensitive"`
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig controls memoization of realm role and permission lookups.
type CacheConfig struct {
	Enabled bool     `toml:"enabled" yaml:"enabled"`
	TTL     Duration `toml:"ttl" yaml:"ttl"`
	Prefix  string   `toml:"prefix" yaml:"prefix"`
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig controls the failed-login limiter. It needs a Redis client
// unless an AttemptLimiter is injected.
type ThrottleConfig struct {
	Enabled     bool     `toml:"enabled" yaml:"enabled"`
	MaxAttempts int      `toml:"max_attempts" yaml:"max_attempts"`
	Cooldown    Duration `toml:"cooldown" yaml:"cooldown"`
	PerHost     bool     `toml:"per_host" yaml:"per_host"`
	Prefix      string   `toml:"prefix" yaml:"prefix"`
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls event delivery.
type EventsConfig struct {
	Enabled    bool `toml:"enabled" yaml:"enabled"`
	Async      bool `toml:"async" yaml:"async"`
	BufferSize int  `toml:"buffer_size" yaml:"buffer_size"`
	DropIfFull bool `toml:"drop_if_full" yaml:"drop_if_full"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool `toml:"enabled" yaml:"enabled"`
	EnableLatencyHistograms bool `toml:"enable_latency_histograms" yaml:"enable_latency_histograms"`
}

/*
====================================
LOGGING CONFIG
====================================
*/

// LoggingConfig controls the logger built by NewLogger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `toml:"level" yaml:"level"`
	// Format is "json" or "text".
	Format string `toml:"format" yaml:"format"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			DefaultTimeout: Duration(session.DefaultTimeout),
			ReaperEnabled:  true,
			ReaperInterval: Duration(session.DefaultReaperInterval),
			RedisPrefix:    "gs",
			RecordTTL:      Duration(24 * time.Hour),
		},
		Authorization: AuthorizationConfig{
			Mode:          AuthorizationModeRealm,
			Strategy:      "deny-overrides",
			CaseSensitive: false,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     Duration(5 * time.Minute),
			Prefix:  "gs",
		},
		Throttle: ThrottleConfig{
			Enabled:     false,
			MaxAttempts: 5,
			Cooldown:    Duration(15 * time.Minute),
			PerHost:     false,
			Prefix:      "gs",
		},
		Events: EventsConfig{
			Enabled:    false,
			Async:      true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports every invalid field, joined, each wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	// Session
	if c.Session.ReaperEnabled && c.Session.ReaperInterval <= 0 {
		invalid("Session.ReaperInterval must be > 0 when the reaper is enabled")
	}
	if c.Session.RecordTTL < 0 {
		invalid("Session.RecordTTL must be >= 0")
	}
	if c.Session.RecordTTL > 0 && c.Session.DefaultTimeout > 0 && c.Session.RecordTTL <= c.Session.DefaultTimeout {
		invalid("Session.RecordTTL must exceed Session.DefaultTimeout")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		invalid("Session.RedisPrefix must be set")
	}

	// Authorization
	switch c.Authorization.Mode {
	case AuthorizationModeRealm, AuthorizationModeModules:
	default:
		invalid("Authorization.Mode must be %q or %q, got %q", AuthorizationModeRealm, AuthorizationModeModules, c.Authorization.Mode)
	}
	if _, ok := authz.StrategyByName(c.Authorization.Strategy); !ok {
		invalid("Authorization.Strategy %q is unknown", c.Authorization.Strategy)
	}

	// Cache
	if c.Cache.Enabled && c.Cache.TTL < 0 {
		invalid("Cache.TTL must be >= 0")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts <= 0 {
			invalid("Throttle.MaxAttempts must be > 0")
		}
		if c.Throttle.Cooldown <= 0 {
			invalid("Throttle.Cooldown must be > 0")
		}
		if strings.TrimSpace(c.Throttle.Prefix) == "" {
			invalid("Throttle.Prefix must be set")
		}
	}

	// Events
	if c.Events.Enabled && c.Events.Async && c.Events.BufferSize <= 0 {
		invalid("Events.BufferSize must be > 0 for async delivery")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		invalid("Metrics.EnableLatencyHistograms requires Metrics.Enabled")
	}

	// Logging
	if _, err := parseLevel(c.Logging.Level); err != nil {
		invalid("Logging.Level: %v", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		invalid("Logging.Format must be json or text, got %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}

/*
====================================
FILE LOADING
====================================
*/

// LoadConfig reads a TOML (.toml) or YAML (.yaml, .yml) file over the
// defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported config file extension %q", ErrInvalidConfig, filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Duration is a time.Duration that decodes from strings such as "30m" in
// TOML and YAML files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML accepts a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}
