package convert

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full conversion pipeline configuration.
type Config struct {
	// ProxyURL is the generative provider endpoint (proxy in front of the
	// model API). Empty disables the generative tier.
	ProxyURL string `yaml:"proxy_url"`
	// AccessToken authenticates against the proxy, if it requires auth.
	AccessToken string `yaml:"access_token"`
	// OCRAPIKey authenticates against the remote OCR provider. Empty
	// disables the OCR tier.
	OCRAPIKey string `yaml:"ocr_api_key"`
	// OCRBaseURL is the OCR provider endpoint.
	OCRBaseURL string `yaml:"ocr_base_url"`

	// Models is the ordered generative fallback chain, cheapest first.
	Models []string `yaml:"models"`

	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`

	// MinContentLength is the floor below which output is never acceptable.
	MinContentLength int `yaml:"min_content_length"`
	// HighQualityThreshold stops the chain as soon as a score reaches it.
	HighQualityThreshold int `yaml:"high_quality_threshold"`

	CacheDir          string `yaml:"cache_dir"`
	OutputDir         string `yaml:"output_dir"`
	HistoryDB         string `yaml:"history_db"`
	Workers           int    `yaml:"workers"`
	EnableFrontmatter bool   `yaml:"enable_frontmatter"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		ProxyURL: "http://127.0.0.1:8045",
		Models: []string{
			"gemini-2.0-flash-exp",
			"deepseek-chat",
			"gemini-1.5-pro",
		},
		OCRBaseURL:           "https://api.cloud.llamaindex.ai/api/parsing",
		TimeoutSeconds:       600,
		MaxOutputTokens:      65536,
		Temperature:          0.1,
		MinContentLength:     100,
		HighQualityThreshold: 95,
		CacheDir:             ".mdconvert_cache",
		Workers:              4,
		EnableFrontmatter:    true,
	}
}

// LoadConfig reads and parses a YAML config file, merges it over
// DefaultConfig, then applies MDCONVERT_* environment overrides.
// An empty path skips the file and uses defaults + environment only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyEnv overrides config fields from MDCONVERT_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("MDCONVERT_PROXY_URL"); v != "" {
		c.ProxyURL = v
	}
	if v := os.Getenv("MDCONVERT_ACCESS_TOKEN"); v != "" {
		c.AccessToken = v
	}
	if v := os.Getenv("MDCONVERT_OCR_API_KEY"); v != "" {
		c.OCRAPIKey = v
	}
	if v := os.Getenv("MDCONVERT_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("MDCONVERT_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("MDCONVERT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("MDCONVERT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
}

// Validate checks that values are sane.
func (c *Config) Validate() error {
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be > 0")
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("max_output_tokens must be > 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2]")
	}
	if c.MinContentLength <= 0 {
		return fmt.Errorf("min_content_length must be > 0")
	}
	if c.HighQualityThreshold <= 0 || c.HighQualityThreshold > 100 {
		return fmt.Errorf("high_quality_threshold must be in (0, 100]")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	return nil
}

// AttemptTimeout returns the per-attempt time bound.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
