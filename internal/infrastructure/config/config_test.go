package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg = applyDefaults(cfg)

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.HTTP.Addr)
	}
	if cfg.Auth.TokenTTL.Minutes() != 30 {
		t.Errorf("expected 30m, got %v", cfg.Auth.TokenTTL)
	}
	if cfg.Engine.MinSamples != 10 || cfg.Engine.RelaxFactor != 1.5 || cfg.Engine.Lookback != 260 {
		t.Errorf("unexpected engine defaults: %+v", cfg.Engine)
	}
	if len(cfg.Engine.Horizons) != 4 || cfg.Engine.Tolerances.RSI != 15 {
		t.Errorf("unexpected horizons/tolerances: %+v", cfg.Engine)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("ENGINE_WORKERS", "8")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := applyEnv(Config{})
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.HTTP.Addr)
	}
	if cfg.Engine.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Engine.Workers)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("unexpected redis addr %s", cfg.Redis.Addr)
	}
}

func TestConfig_ApplyEnvRejectsMalformedNumbers(t *testing.T) {
	for _, key := range []string{"ENGINE_WORKERS", "ENGINE_MIN_SAMPLES"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "not-a-number")
			if _, err := applyEnv(Config{}); err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error naming %s, got %v", key, err)
			}
			if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
				t.Fatalf("LoadFromFile should fail on malformed %s", key)
			}
		})
	}
}

func TestLoadFromFile_PartialTolerances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "engine:\n  tolerances:\n    price: 0.1\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	want := ToleranceConfig{Price: 0.1, VolumeRatio: 0.30, RSI: 15, High52w: 0.15, Valuation: 0.20}
	if cfg.Engine.Tolerances != want {
		t.Errorf("tolerances = %+v, want %+v", cfg.Engine.Tolerances, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
http:
  addr: ":7070"
log:
  level: debug
  format: console
engine:
  horizons: [5, 20]
  min_samples: 8
  regime:
    factors:
      bear-decline: 0.5
    weights:
      US:
        trend: 0.5
        technical: 0.5
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" || cfg.Log.Level != "debug" {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.Engine.MinSamples != 8 || len(cfg.Engine.Horizons) != 2 {
		t.Errorf("engine values not applied: %+v", cfg.Engine)
	}
	if cfg.Engine.Regime.Factors["bear-decline"] != 0.5 || cfg.Engine.Regime.Weights["US"]["trend"] != 0.5 {
		t.Errorf("regime overrides not applied: %+v", cfg.Engine.Regime)
	}
	if cfg.Engine.Workers != 4 {
		t.Errorf("defaults should fill missing values, got %d workers", cfg.Engine.Workers)
	}
}

func TestLoadFromFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.HTTP.Addr == "" {
		t.Errorf("expected default addr")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"short lookback", func(c *Config) { c.Engine.Lookback = 100 }},
		{"relax below one", func(c *Config) { c.Engine.RelaxFactor = 0.5 }},
		{"non-positive horizon", func(c *Config) { c.Engine.Horizons = []int{5, 0} }},
		{"negative tolerance", func(c *Config) { c.Engine.Tolerances.Price = -0.1 }},
		{"client without hash", func(c *Config) { c.Auth.Clients = []ClientConfig{{ID: "cli"}} }},
		{"zero regime factor", func(c *Config) { c.Engine.Regime.Factors = map[string]float64{"bull-top": 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := applyDefaults(Config{})
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
