// Package config loads proxy configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved proxy configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string

	// CacheDir is the directory holding the cache snapshot.
	CacheDir string

	// UpstreamURL is the Solcast API base URL.
	UpstreamURL string

	// TTL is the cache freshness window.
	TTL time.Duration

	// RateLimit is the minimum interval between upstream calls per bucket.
	RateLimit time.Duration

	// ErrorCooldown is the next-attempt override after a generic upstream
	// or transport failure.
	ErrorCooldown time.Duration

	// ExhaustedCooldown is the next-attempt override after upstream
	// reports rate-limit exhaustion.
	ExhaustedCooldown time.Duration

	// UpstreamTimeout bounds a single upstream HTTP call.
	UpstreamTimeout time.Duration

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogPretty enables human-readable console logging.
	LogPretty bool
}

// fileConfig is the YAML form. Durations are strings ("2h", "30s") parsed
// during load.
type fileConfig struct {
	Listen      string `yaml:"listen"`
	CacheDir    string `yaml:"cache_dir"`
	UpstreamURL string `yaml:"upstream_url"`

	TTL               string `yaml:"ttl"`
	RateLimit         string `yaml:"rate_limit"`
	ErrorCooldown     string `yaml:"error_cooldown"`
	ExhaustedCooldown string `yaml:"exhausted_cooldown"`
	UpstreamTimeout   string `yaml:"upstream_timeout"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Default returns the shipped defaults: a 2 hour freshness window against a
// 2.5 hour call budget, a short 30 second cool-down for transient failures,
// and a 1 hour cool-down when upstream reports exhaustion.
func Default() Config {
	return Config{
		Listen:            ":8888",
		CacheDir:          "./data",
		UpstreamURL:       "https://api.solcast.com.au",
		TTL:               2 * time.Hour,
		RateLimit:         150 * time.Minute,
		ErrorCooldown:     30 * time.Second,
		ExhaustedCooldown: 1 * time.Hour,
		UpstreamTimeout:   30 * time.Second,
		LogLevel:          "info",
	}
}

// Load resolves the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if err := fc.apply(&cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) error {
	if fc.Listen != "" {
		cfg.Listen = fc.Listen
	}
	if fc.CacheDir != "" {
		cfg.CacheDir = fc.CacheDir
	}
	if fc.UpstreamURL != "" {
		cfg.UpstreamURL = fc.UpstreamURL
	}
	if fc.Log.Level != "" {
		cfg.LogLevel = fc.Log.Level
	}
	if fc.Log.Pretty {
		cfg.LogPretty = true
	}

	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.TTL, "ttl", &cfg.TTL},
		{fc.RateLimit, "rate_limit", &cfg.RateLimit},
		{fc.ErrorCooldown, "error_cooldown", &cfg.ErrorCooldown},
		{fc.ExhaustedCooldown, "exhausted_cooldown", &cfg.ExhaustedCooldown},
		{fc.UpstreamTimeout, "upstream_timeout", &cfg.UpstreamTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("SOLCAST_PROXY_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("SOLCAST_PROXY_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("SOLCAST_PROXY_UPSTREAM_URL"); v != "" {
		cfg.UpstreamURL = v
	}
	if v := os.Getenv("SOLCAST_PROXY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"SOLCAST_PROXY_TTL", &cfg.TTL},
		{"SOLCAST_PROXY_RATE_LIMIT", &cfg.RateLimit},
		{"SOLCAST_PROXY_ERROR_COOLDOWN", &cfg.ErrorCooldown},
		{"SOLCAST_PROXY_EXHAUSTED_COOLDOWN", &cfg.ExhaustedCooldown},
		{"SOLCAST_PROXY_UPSTREAM_TIMEOUT", &cfg.UpstreamTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.env, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (c Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}
	if c.UpstreamURL == "" {
		return fmt.Errorf("upstream_url is required")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive (got %v)", c.TTL)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative (got %v)", c.RateLimit)
	}
	if c.ErrorCooldown < 0 || c.ExhaustedCooldown < 0 {
		return fmt.Errorf("cool-downs must not be negative")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream_timeout must be positive (got %v)", c.UpstreamTimeout)
	}
	return nil
}
