package convert

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	// WHAT: Defaults match the documented contract values.
	// WHY: The chain's acceptance behavior depends on these exact numbers.
	cfg := DefaultConfig()

	if cfg.TimeoutSeconds != 600 {
		t.Errorf("TimeoutSeconds = %d, want 600", cfg.TimeoutSeconds)
	}
	if cfg.HighQualityThreshold != 95 {
		t.Errorf("HighQualityThreshold = %d, want 95", cfg.HighQualityThreshold)
	}
	if cfg.MinContentLength != 100 {
		t.Errorf("MinContentLength = %d, want 100", cfg.MinContentLength)
	}
	if len(cfg.Models) == 0 {
		t.Error("expected a default model chain")
	}
	if cfg.AttemptTimeout() != 600*time.Second {
		t.Errorf("AttemptTimeout = %v", cfg.AttemptTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	// WHAT: YAML values merge over defaults.
	// WHY: Partial config files must not zero out unspecified options.
	dir := t.TempDir()
	path := filepath.Join(dir, "mdconvert.yaml")
	os.WriteFile(path, []byte("proxy_url: http://proxy.local:9000\nhigh_quality_threshold: 90\nmodels:\n  - only-model\n"), 0o644)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ProxyURL != "http://proxy.local:9000" {
		t.Errorf("ProxyURL = %q", cfg.ProxyURL)
	}
	if cfg.HighQualityThreshold != 90 {
		t.Errorf("HighQualityThreshold = %d, want 90", cfg.HighQualityThreshold)
	}
	if len(cfg.Models) != 1 || cfg.Models[0] != "only-model" {
		t.Errorf("Models = %v", cfg.Models)
	}
	// Unspecified values keep their defaults.
	if cfg.TimeoutSeconds != 600 {
		t.Errorf("TimeoutSeconds = %d, want default 600", cfg.TimeoutSeconds)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	// WHAT: MDCONVERT_* environment variables win over the file.
	// WHY: API keys and endpoints come from the environment in practice.
	dir := t.TempDir()
	path := filepath.Join(dir, "mdconvert.yaml")
	os.WriteFile(path, []byte("proxy_url: http://from-file\n"), 0o644)

	t.Setenv("MDCONVERT_PROXY_URL", "http://from-env")
	t.Setenv("MDCONVERT_TIMEOUT_SECONDS", "30")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ProxyURL != "http://from-env" {
		t.Errorf("ProxyURL = %q, want env value", cfg.ProxyURL)
	}
	if cfg.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.TimeoutSeconds)
	}
}

func TestConfigValidate(t *testing.T) {
	// WHAT: Out-of-range values are rejected.
	// WHY: A zero timeout or a 0 threshold silently breaks the chain.
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.TimeoutSeconds = 0 }},
		{"negative temperature", func(c *Config) { c.Temperature = -1 }},
		{"threshold above 100", func(c *Config) { c.HighQualityThreshold = 101 }},
		{"zero min length", func(c *Config) { c.MinContentLength = 0 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	// WHAT: A nonexistent config path is an error; an empty path is not.
	// WHY: Explicitly requested files must exist; defaults need no file.
	if _, err := LoadConfig("/no/such/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfig(""); err != nil {
		t.Errorf("empty path must fall back to defaults: %v", err)
	}
}
