package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listen != ":8888" {
		t.Errorf("Listen = %q, want :8888", cfg.Listen)
	}
	if cfg.TTL != 2*time.Hour {
		t.Errorf("TTL = %v, want 2h", cfg.TTL)
	}
	if cfg.RateLimit != 150*time.Minute {
		t.Errorf("RateLimit = %v, want 2h30m", cfg.RateLimit)
	}
	if cfg.ErrorCooldown != 30*time.Second {
		t.Errorf("ErrorCooldown = %v, want 30s", cfg.ErrorCooldown)
	}
	if cfg.ExhaustedCooldown != time.Hour {
		t.Errorf("ExhaustedCooldown = %v, want 1h", cfg.ExhaustedCooldown)
	}
	if cfg.UpstreamURL != "https://api.solcast.com.au" {
		t.Errorf("UpstreamURL = %q", cfg.UpstreamURL)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen: ":9999"
cache_dir: /var/cache/solcast
ttl: 1h
rate_limit: 3h
error_cooldown: 45s
log:
  level: debug
  pretty: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Listen != ":9999" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.CacheDir != "/var/cache/solcast" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.TTL != time.Hour {
		t.Errorf("TTL = %v, want 1h", cfg.TTL)
	}
	if cfg.RateLimit != 3*time.Hour {
		t.Errorf("RateLimit = %v, want 3h", cfg.RateLimit)
	}
	if cfg.ErrorCooldown != 45*time.Second {
		t.Errorf("ErrorCooldown = %v, want 45s", cfg.ErrorCooldown)
	}
	if cfg.LogLevel != "debug" || !cfg.LogPretty {
		t.Errorf("Log = %q/%v, want debug/pretty", cfg.LogLevel, cfg.LogPretty)
	}
	// Unset fields keep their defaults.
	if cfg.ExhaustedCooldown != time.Hour {
		t.Errorf("ExhaustedCooldown = %v, want default 1h", cfg.ExhaustedCooldown)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ttl: 1h\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOLCAST_PROXY_TTL", "15m")
	t.Setenv("SOLCAST_PROXY_UPSTREAM_URL", "http://localhost:9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.TTL != 15*time.Minute {
		t.Errorf("TTL = %v, want env override 15m", cfg.TTL)
	}
	if cfg.UpstreamURL != "http://localhost:9000" {
		t.Errorf("UpstreamURL = %q, want env override", cfg.UpstreamURL)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "listen: [unclosed"},
		{name: "bad duration", content: "ttl: two hours"},
		{name: "zero ttl", content: "ttl: 0s"},
		{name: "negative rate limit", content: "rate_limit: -5m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of a missing explicit file must fail")
	}
}
